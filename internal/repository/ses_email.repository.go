package repository

import (
	"context"
	"fmt"
	"strings"

	"algotrader/internal/domain"
	"algotrader/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailRepository delivers rendered session reports. to may hold several
// comma separated recipients.
type EmailRepository interface {
	SendEmail(ctx context.Context, to string, subject string, body string) error
}

type sesSender interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type emailRepositoryHandler struct {
	ses       sesSender
	fromEmail string
}

// NewEmailRepository sends through SES in region. fromEmail must be a
// verified identity there.
func NewEmailRepository(ctx context.Context, region, fromEmail string) (EmailRepository, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &emailRepositoryHandler{
		ses:       sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
	}, nil
}

func recipients(to string) []string {
	out := []string{}
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func utf8Content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func (h *emailRepositoryHandler) buildInput(to []string, subject, body string) *sesv2.SendEmailInput {
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(h.fromEmail),
		Destination:      &types.Destination{ToAddresses: to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8Content(subject),
				Body:    &types.Body{Html: utf8Content(body)},
			},
		},
	}
}

func (h *emailRepositoryHandler) SendEmail(ctx context.Context, to string, subject string, body string) error {
	addresses := recipients(to)
	if len(addresses) == 0 {
		return fmt.Errorf("%w: no email recipients in %q", domain.ErrInvalidParams, to)
	}

	out, err := h.ses.SendEmail(ctx, h.buildInput(addresses, subject, body))
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	if out != nil && out.MessageId != nil {
		logger.FromContext(ctx).Infow("sent email", "message_id", *out.MessageId, "recipients", len(addresses))
	}
	return nil
}
