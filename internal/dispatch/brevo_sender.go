package dispatch

import (
	"context"
	"time"

	"github.com/questspace/digest-service/internal/brevo"
)

// BrevoSender sends digests through the Brevo transactional API. When a
// hosted template ID is configured and the message carries template params,
// the hosted template is used; otherwise the inline subject/html/text body.
type BrevoSender struct {
	client     *brevo.Client
	fromEmail  string
	fromName   string
	templateID int64
}

// NewBrevoSender creates the primary digest sender. templateID of 0 forces
// inline rendering.
func NewBrevoSender(client *brevo.Client, fromEmail, fromName string, templateID int64) *BrevoSender {
	return &BrevoSender{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		templateID: templateID,
	}
}

// Send delivers one digest email via Brevo.
func (s *BrevoSender) Send(ctx context.Context, msg *OutboundEmail) (*SendResult, error) {
	req := &brevo.SendRequest{
		Sender:  brevo.Recipient{Email: s.fromEmail, Name: s.fromName},
		To:      []brevo.Recipient{{Email: msg.To, Name: msg.ToName}},
		Headers: unsubscribeHeaders(msg.UnsubscribeURL, s.fromEmail),
		Tags:    []string{"weekly-digest"},
	}

	if s.templateID != 0 && msg.TemplateParams != nil {
		req.TemplateID = s.templateID
		req.Params = msg.TemplateParams
	} else {
		req.Subject = msg.Subject
		req.HTMLContent = msg.HTMLContent
		req.TextContent = msg.TextContent
	}

	id, err := s.client.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return &SendResult{
		Success:   true,
		MessageID: id,
		Provider:  "brevo",
		SentAt:    time.Now().UTC(),
	}, nil
}
