// Package email provides the email client for lead notifications.
package email

import (
	"context"
	"fmt"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/forms"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/email/templates"
	"github.com/resendlabs/resend-go"
)

// Service defines the interface for sending emails, allowing for mock implementations in tests.
type Service interface {
	SendLeadNotification(ctx context.Context, lead *forms.Lead) error
}

// Options configures the Resend client.
type Options struct {
	APIKey   string
	To       string
	From     string
	FromName string
}

// ResendClient is the concrete implementation of the email Service using the Resend API.
type ResendClient struct {
	send      func(*resend.SendEmailRequest) error
	to        string
	fromEmail string
	fromName  string
}

// NewService creates a new email service client, returning the Service interface.
func NewService(opts Options) (Service, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required")
	}
	if opts.To == "" {
		return nil, fmt.Errorf("CT_LEAD_NOTIFY_TO is required")
	}
	client := resend.NewClient(opts.APIKey)
	return newResendClient(opts, func(req *resend.SendEmailRequest) error {
		_, err := client.Emails.Send(req)
		return err
	}), nil
}

func newResendClient(opts Options, send func(*resend.SendEmailRequest) error) *ResendClient {
	if opts.From == "" {
		opts.From = "noreply@clicktrail.local"
	}
	if opts.FromName == "" {
		opts.FromName = "ClickTrail"
	}
	return &ResendClient{send: send, to: opts.To, fromEmail: opts.From, fromName: opts.FromName}
}

// SendLeadNotification composes and sends the lead notification email.
func (c *ResendClient) SendLeadNotification(ctx context.Context, lead *forms.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	props := templates.LeadEmailProps{
		Provider: lead.Provider,
		FormID:   lead.FormID,
		LeadID:   lead.ID,
	}
	if lead.Attribution != nil {
		props.SessionCount = lead.Attribution.SessionCount
		flat := events.Flatten(lead.Attribution)
		for _, key := range events.FlatKeys {
			if v := flat[key]; v != "" {
				props.Rows = append(props.Rows, templates.Row{Key: key, Value: v})
			}
		}
	}

	html, err := templates.GetLeadEmailContent(props)
	if err != nil {
		return fmt.Errorf("failed to render lead email: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{c.to},
		Subject: fmt.Sprintf("New %s lead", lead.Provider),
		Html:    html,
	}

	if err := c.send(params); err != nil {
		return fmt.Errorf("failed to send lead email via Resend: %w", err)
	}
	return nil
}
