package billing

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/helixhealth/helix-portal/internal/shared"
)

// RepositoryPort defines data access methods for billing.
type RepositoryPort interface {
	ListByUser(ctx context.Context, userID, status, operator string, page, perPage int) ([]Invoice, int, error)
	Get(ctx context.Context, id string) (*Invoice, error)
	MarkPaid(ctx context.Context, id, userID string) error
}

// GatewayPort issues the guarded settlement call.
type GatewayPort interface {
	Charge(ctx context.Context, brand string, card CardDetails) error
}

// ReceiptOpener streams a vetted receipt file.
type ReceiptOpener interface {
	OpenReceipt(name string) (*os.File, string, error)
}

// ReceiptScheduler enqueues receipt rendering after settlement.
type ReceiptScheduler interface {
	ScheduleReceipt(ctx context.Context, invoiceID string) error
}

// AuditRecorder persists security-relevant billing events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles invoice business logic.
type Service struct {
	repo        RepositoryPort
	gateway     GatewayPort
	receipts    ReceiptOpener
	receiptJobs ReceiptScheduler
	audit       AuditRecorder
	logger      *slog.Logger
}

// NewService builds a Service instance. The scheduler and audit
// recorder may be nil; settlement then skips those side effects.
func NewService(repo RepositoryPort, gateway GatewayPort, receipts ReceiptOpener, receiptJobs ReceiptScheduler, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		gateway:     gateway,
		receipts:    receipts,
		receiptJobs: receiptJobs,
		audit:       audit,
		logger:      logger,
	}
}

// ListInvoices returns one page of the caller's invoices with the
// optional status filter applied.
func (s *Service) ListInvoices(ctx context.Context, userID, status, operator string, page, perPage int) ([]Invoice, shared.Pagination, error) {
	invoices, total, err := s.repo.ListByUser(ctx, userID, status, operator, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return invoices, shared.NewPagination(page, perPage, total), nil
}

// GetInvoice returns an invoice the caller owns. A foreign invoice id
// reads the same as a missing one.
func (s *Service) GetInvoice(ctx context.Context, id, userID string) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

// SettlePayment charges the card through the allowlisted processor
// and marks the invoice paid. Any gateway failure leaves the invoice
// untouched; the call is never retried here because settlement is not
// assumed idempotent.
func (s *Service) SettlePayment(ctx context.Context, invoiceID, userID, brand string, card CardDetails) error {
	inv, err := s.GetInvoice(ctx, invoiceID, userID)
	if err != nil {
		return err
	}
	if inv.Status == StatusPaid {
		return fmt.Errorf("billing: invoice already settled: %w", shared.ErrPayment)
	}

	if err := s.gateway.Charge(ctx, brand, card); err != nil {
		return err
	}

	if err := s.repo.MarkPaid(ctx, invoiceID, userID); err != nil {
		// The processor accepted the charge but the invoice lost a
		// settlement race; the detail stays in the logs.
		s.logger.Error("mark invoice paid", slog.String("invoice_id", invoiceID), slog.Any("error", err))
		return fmt.Errorf("billing: record settlement: %w", shared.ErrPayment)
	}
	s.logger.Info("invoice settled", slog.String("invoice_id", invoiceID))

	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "invoice.settled",
			Entity:   "invoice",
			EntityID: invoiceID,
		})
		if err != nil {
			s.logger.Warn("record audit", slog.Any("error", err))
		}
	}
	if s.receiptJobs != nil {
		if err := s.receiptJobs.ScheduleReceipt(ctx, invoiceID); err != nil {
			s.logger.Warn("schedule receipt", slog.String("invoice_id", invoiceID), slog.Any("error", err))
		}
	}
	return nil
}

// Receipt opens an invoice receipt PDF for the invoice owner.
func (s *Service) Receipt(ctx context.Context, invoiceID, userID, name string) (*os.File, string, error) {
	if _, err := s.GetInvoice(ctx, invoiceID, userID); err != nil {
		return nil, "", err
	}
	return s.receipts.OpenReceipt(name)
}
