package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/helixhealth/helix-portal/internal/billing"
	jobmetrics "github.com/helixhealth/helix-portal/internal/jobs"
	"github.com/helixhealth/helix-portal/report"
)

// TaskTypeGenerateReceipt renders a settlement receipt PDF.
const TaskTypeGenerateReceipt = "receipt:generate"

// GenerateReceiptPayload identifies the settled invoice.
type GenerateReceiptPayload struct {
	InvoiceID string `json:"invoice_id"`
}

// NewGenerateReceiptTask constructs an Asynq task.
func NewGenerateReceiptTask(payload GenerateReceiptPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerateReceipt, data), nil
}

// InvoiceSource loads invoices for receipt rendering.
type InvoiceSource interface {
	Get(ctx context.Context, id string) (*billing.Invoice, error)
}

// ReceiptRenderer produces the receipt PDF bytes.
type ReceiptRenderer interface {
	Generate(ctx context.Context, data report.ReceiptData) ([]byte, error)
}

// ReceiptStore persists the rendered document under the invoices root.
type ReceiptStore interface {
	SaveReceipt(name string, data []byte) error
}

// GenerateReceiptJob processes TaskTypeGenerateReceipt tasks.
type GenerateReceiptJob struct {
	Invoices InvoiceSource
	Renderer ReceiptRenderer
	Store    ReceiptStore
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Handle renders and stores the receipt for one settled invoice. An
// invoice that is missing or no longer paid is dropped without retry.
func (j *GenerateReceiptJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("generate_receipt")
	var payload GenerateReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}

	inv, err := j.Invoices.Get(ctx, payload.InvoiceID)
	if err != nil {
		j.logger().Warn("load invoice for receipt", slog.String("invoice_id", payload.InvoiceID), slog.Any("error", err))
		return tracker.End(asynq.SkipRetry)
	}
	if inv.Status != billing.StatusPaid {
		j.logger().Warn("receipt requested for unsettled invoice", slog.String("invoice_id", inv.ID))
		return tracker.End(asynq.SkipRetry)
	}

	pdf, err := j.Renderer.Generate(ctx, report.ReceiptData{
		InvoiceID: inv.ID,
		Amount:    inv.Amount,
		PaidAt:    inv.UpdatedAt,
	})
	if err != nil {
		j.logger().Error("render receipt", slog.String("invoice_id", inv.ID), slog.Any("error", err))
		return tracker.End(err)
	}

	name := report.ReceiptFileName(inv.ID)
	if err := j.Store.SaveReceipt(name, pdf); err != nil {
		j.logger().Error("store receipt", slog.String("invoice_id", inv.ID), slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("receipt generated", slog.String("invoice_id", inv.ID), slog.String("name", name))
	return tracker.End(nil)
}

func (j *GenerateReceiptJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
