// Package digest implements the weekly digest orchestrator.
//
// The service owns the per-user state machine (queued, rendered, sent, with
// retry accounting) and the batched sweep that walks all eligible users. It
// depends on repository and dispatcher interfaces defined in this package
// and should never import from api/.
//
// Repository implementations live in repository/postgres/.
package digest
