package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/helixhealth/helix-portal/internal/jobs"
	"github.com/helixhealth/helix-portal/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes a fully rendered email. The body may
// contain an activation or reset link; payloads are therefore never
// logged verbatim.
type SendEmailPayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// EmailSender delivers a rendered message, typically over SMTP.
type EmailSender interface {
	Send(msg mail.Message) error
}

// SendEmailJob processes TaskTypeSendEmail tasks.
type SendEmailJob struct {
	Sender  EmailSender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle delivers one queued email. Malformed payloads are dropped;
// relay failures are retried by Asynq.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("send_email")
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	err := j.Sender.Send(mail.Message{
		To:       payload.To,
		Subject:  payload.Subject,
		HTMLBody: payload.HTMLBody,
	})
	if err != nil {
		j.logger().Error("send email", slog.String("to", payload.To), slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("email delivered", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return tracker.End(nil)
}

func (j *SendEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
