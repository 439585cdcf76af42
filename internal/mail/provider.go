// Package mail renders and sends the site's transactional email and keeps a
// log of every attempt.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrNoAPIKey = errors.New("SendGrid APIキーが設定されていません")

// Provider delivers one rendered message.
type Provider interface {
	Send(ctx context.Context, message *Message) (*SendResult, error)
	Name() string
}

type Message struct {
	To       string
	From     string
	FromName string
	Subject  string
	Body     string
	BodyHTML string
}

type SendResult struct {
	ProviderID   string
	ProviderName string
	StatusCode   int
}

// ProviderFactory builds a provider for an API key. The key can change at
// runtime through the admin settings, so providers are not long-lived.
type ProviderFactory func(apiKey string) Provider

type SendGridProvider struct {
	client *sendgrid.Client
}

func NewSendGridProvider(apiKey string) Provider {
	return &SendGridProvider{client: sendgrid.NewSendClient(apiKey)}
}

func (p *SendGridProvider) Name() string {
	return "SendGrid"
}

func (p *SendGridProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	from := sgmail.NewEmail(message.FromName, message.From)
	to := sgmail.NewEmail("", message.To)
	m := sgmail.NewSingleEmail(from, message.Subject, to, message.Body, message.BodyHTML)

	// Transactional mail: no link rewriting, no tracking pixel.
	tracking := sgmail.NewTrackingSettings()
	click := sgmail.NewClickTrackingSetting()
	click.SetEnable(false)
	click.SetEnableText(false)
	tracking.SetClickTracking(click)
	open := sgmail.NewOpenTrackingSetting()
	open.SetEnable(false)
	tracking.SetOpenTracking(open)
	m.SetTrackingSettings(tracking)

	response, err := p.client.SendWithContext(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("sendgrid API error: %d - %s", response.StatusCode, response.Body)
	}

	var messageID string
	if ids, ok := response.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		messageID = ids[0]
	}
	return &SendResult{ProviderID: messageID, ProviderName: p.Name(), StatusCode: response.StatusCode}, nil
}
