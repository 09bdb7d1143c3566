package jobs

import (
	"context"
	"fmt"

	"github.com/helixhealth/helix-portal/internal/mail"
)

// QueueMailer renders account emails and submits them to the job queue
// so HTTP handlers never block on SMTP delivery.
type QueueMailer struct {
	composer *mail.Composer
	client   *Client
}

// NewQueueMailer constructs a QueueMailer.
func NewQueueMailer(composer *mail.Composer, client *Client) *QueueMailer {
	return &QueueMailer{composer: composer, client: client}
}

// SendActivation enqueues an account-activation email.
func (m *QueueMailer) SendActivation(ctx context.Context, to, firstName, lastName, link string) error {
	msg, err := m.composer.Activation(to, firstName, lastName, link)
	if err != nil {
		return fmt.Errorf("jobs: compose activation: %w", err)
	}
	return m.enqueue(ctx, msg)
}

// SendPasswordReset enqueues a password-reset email.
func (m *QueueMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	msg, err := m.composer.PasswordReset(to, link)
	if err != nil {
		return fmt.Errorf("jobs: compose reset: %w", err)
	}
	return m.enqueue(ctx, msg)
}

func (m *QueueMailer) enqueue(ctx context.Context, msg mail.Message) error {
	err := m.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
	})
	if err != nil {
		return fmt.Errorf("jobs: enqueue email: %w", err)
	}
	return nil
}
