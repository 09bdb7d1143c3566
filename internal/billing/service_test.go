package billing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helixhealth/helix-portal/internal/shared"
)

type memoryBillingRepo struct {
	mu       sync.Mutex
	invoices map[string]*Invoice
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{invoices: make(map[string]*Invoice)}
}

func (r *memoryBillingRepo) add(inv Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := inv
	r.invoices[inv.ID] = &copied
}

func (r *memoryBillingRepo) ListByUser(ctx context.Context, userID, status, operator string, page, perPage int) ([]Invoice, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.UserID != userID {
			continue
		}
		if status != "" && string(inv.Status) != status {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
}

func (s *recordingScheduler) ScheduleReceipt(ctx context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, invoiceID)
	return nil
}

func (r *memoryBillingRepo) Get(ctx context.Context, id string) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (r *memoryBillingRepo) MarkPaid(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.UserID != userID || inv.Status == StatusPaid {
		return shared.ErrNotFound
	}
	inv.Status = StatusPaid
	return nil
}

type stubGateway struct {
	err     error
	charges int
}

func (g *stubGateway) Charge(ctx context.Context, brand string, card CardDetails) error {
	g.charges++
	return g.err
}

type dirReceipts struct {
	dir string
}

func (d dirReceipts) OpenReceipt(name string) (*os.File, string, error) {
	f, err := os.Open(filepath.Join(d.dir, name))
	if err != nil {
		return nil, "", shared.ErrNotFound
	}
	return f, "application/octet-stream", nil
}

func unpaidInvoice(id, userID string) Invoice {
	return Invoice{
		ID:      id,
		UserID:  userID,
		Amount:  120.50,
		DueDate: time.Now().Add(30 * 24 * time.Hour),
		Status:  StatusUnpaid,
	}
}

func TestSettlePayment(t *testing.T) {
	repo := newMemoryBillingRepo()
	repo.add(unpaidInvoice("inv-1", "user-1"))
	gateway := &stubGateway{}
	scheduler := &recordingScheduler{}
	svc := NewService(repo, gateway, dirReceipts{}, scheduler, nil, nil)

	err := svc.SettlePayment(context.Background(), "inv-1", "user-1", "visa.example.com", testCard())
	require.NoError(t, err)
	require.Equal(t, 1, gateway.charges)
	require.Equal(t, StatusPaid, repo.invoices["inv-1"].Status)
	require.Equal(t, []string{"inv-1"}, scheduler.scheduled, "receipt rendering queued after settlement")
}

func TestListInvoicesPagination(t *testing.T) {
	repo := newMemoryBillingRepo()
	repo.add(unpaidInvoice("inv-1", "user-1"))
	repo.add(unpaidInvoice("inv-2", "user-1"))
	repo.add(unpaidInvoice("inv-3", "user-2"))
	svc := NewService(repo, &stubGateway{}, dirReceipts{}, nil, nil, nil)

	invoices, pagination, err := svc.ListInvoices(context.Background(), "user-1", "", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	require.Equal(t, 1, pagination.Page)
	require.Equal(t, 20, pagination.PerPage)
	require.Equal(t, 2, pagination.Total)
	require.Equal(t, 1, pagination.TotalPages)
}

func TestSettlePaymentGatewayRejection(t *testing.T) {
	repo := newMemoryBillingRepo()
	repo.add(unpaidInvoice("inv-1", "user-1"))
	gateway := &stubGateway{err: shared.ErrPayment}
	svc := NewService(repo, gateway, dirReceipts{}, nil, nil, nil)

	err := svc.SettlePayment(context.Background(), "inv-1", "user-1", "attacker.com", testCard())
	require.True(t, errors.Is(err, shared.ErrPayment))
	require.Equal(t, StatusUnpaid, repo.invoices["inv-1"].Status, "invoice untouched on failure")
}

func TestSettlePaymentForeignInvoice(t *testing.T) {
	repo := newMemoryBillingRepo()
	repo.add(unpaidInvoice("inv-1", "user-1"))
	gateway := &stubGateway{}
	svc := NewService(repo, gateway, dirReceipts{}, nil, nil, nil)

	err := svc.SettlePayment(context.Background(), "inv-1", "user-2", "visa.example.com", testCard())
	require.True(t, errors.Is(err, shared.ErrNotFound))
	require.Zero(t, gateway.charges, "no outbound call for a foreign invoice")
	require.Equal(t, StatusUnpaid, repo.invoices["inv-1"].Status)
}

func TestSettlePaymentAlreadyPaid(t *testing.T) {
	repo := newMemoryBillingRepo()
	inv := unpaidInvoice("inv-1", "user-1")
	inv.Status = StatusPaid
	repo.add(inv)
	gateway := &stubGateway{}
	svc := NewService(repo, gateway, dirReceipts{}, nil, nil, nil)

	err := svc.SettlePayment(context.Background(), "inv-1", "user-1", "visa.example.com", testCard())
	require.True(t, errors.Is(err, shared.ErrPayment))
	require.Zero(t, gateway.charges, "no second charge for a settled invoice")
}

func TestGetInvoiceOwnership(t *testing.T) {
	repo := newMemoryBillingRepo()
	repo.add(unpaidInvoice("inv-1", "user-1"))
	svc := NewService(repo, &stubGateway{}, dirReceipts{}, nil, nil, nil)

	inv, err := svc.GetInvoice(context.Background(), "inv-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "inv-1", inv.ID)

	_, err = svc.GetInvoice(context.Background(), "inv-1", "user-2")
	require.True(t, errors.Is(err, shared.ErrNotFound), "foreign invoice reads as missing")
}

func TestReceipt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inv-1.pdf"), []byte("%PDF"), 0o600))

	repo := newMemoryBillingRepo()
	repo.add(unpaidInvoice("inv-1", "user-1"))
	svc := NewService(repo, &stubGateway{}, dirReceipts{dir: dir}, nil, nil, nil)

	f, contentType, err := svc.Receipt(context.Background(), "inv-1", "user-1", "inv-1.pdf")
	require.NoError(t, err)
	f.Close()
	require.Equal(t, "application/octet-stream", contentType)

	_, _, err = svc.Receipt(context.Background(), "missing", "user-1", "inv-1.pdf")
	require.True(t, errors.Is(err, shared.ErrNotFound))

	_, _, err = svc.Receipt(context.Background(), "inv-1", "user-2", "inv-1.pdf")
	require.True(t, errors.Is(err, shared.ErrNotFound))
}
