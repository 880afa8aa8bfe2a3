package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/questspace/digest-service/internal/pkg/logger"
)

// SESSender sends digests via AWS SES using the SDK v2. It is wired as the
// secondary sender so a Brevo outage does not stall a sweep. SES only
// supports inline content, so template-param messages fall back to the
// inline body carried alongside them.
type SESSender struct {
	fromEmail string
	fromName  string
	client    *sesv2.Client
}

// NewSESSender creates an SES sender. Returns nil when credentials are not
// configured so callers can pass it straight into NewDispatcher.
func NewSESSender(accessKey, secretKey, region, fromEmail, fromName string) *SESSender {
	if accessKey == "" || secretKey == "" {
		return nil
	}
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		logger.Warn("Failed to initialize AWS config, SES sender disabled", "error", err.Error())
		return nil
	}

	return &SESSender{
		fromEmail: fromEmail,
		fromName:  fromName,
		client:    sesv2.NewFromConfig(cfg),
	}
}

// Send delivers a single digest through AWS SES.
func (s *SESSender) Send(ctx context.Context, msg *OutboundEmail) (*SendResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("ses client not initialized")
	}

	var headers []types.MessageHeader
	for name, value := range unsubscribeHeaders(msg.UnsubscribeURL, s.fromEmail) {
		headers = append(headers, types.MessageHeader{Name: aws.String(name), Value: aws.String(value)})
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")},
				},
				Headers: headers,
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("category"), Value: aws.String("weekly-digest")},
			{Name: aws.String("user_id"), Value: aws.String(msg.UserID)},
		},
	}
	if msg.TextContent != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		logger.Warn("SES send failed", "email", msg.To, "error", err.Error())
		return nil, err
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	logger.Info("Sent via SES", "email", msg.To, "message_id", messageID)

	return &SendResult{
		Success:   true,
		MessageID: messageID,
		Provider:  "ses",
		SentAt:    time.Now().UTC(),
	}, nil
}
