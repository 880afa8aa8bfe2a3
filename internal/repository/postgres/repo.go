// Package postgres implements the digest repository against PostgreSQL
// using database/sql and lib/pq.
package postgres

import (
	"database/sql"
	"fmt"
)

// Repo implements digest.Repository. Methods are split across files by
// concern: preferences, digests, activity, events, suppressions, tokens.
type Repo struct{ db *sql.DB }

// New creates a Postgres-backed digest repository.
func New(db *sql.DB) *Repo { return &Repo{db: db} }

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// setBuilder accumulates a dynamic UPDATE ... SET clause with positional args.
type setBuilder struct {
	sets []string
	args []interface{}
	idx  int
}

func newSetBuilder() *setBuilder { return &setBuilder{idx: 1} }

func (b *setBuilder) add(col string, val interface{}) {
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", col, b.idx))
	b.args = append(b.args, val)
	b.idx++
}

func (b *setBuilder) raw(expr string) {
	b.sets = append(b.sets, expr)
}
