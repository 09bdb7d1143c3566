package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helixhealth/helix-portal/internal/shared"
)

// allowedOperators is the closed set of comparison operators a caller
// may apply to the status filter. The operator is interpolated only
// from this map; the status value itself is always a bind parameter.
var allowedOperators = map[string]struct{}{
	"=": {}, "!=": {}, ">": {}, "<": {}, ">=": {}, "<=": {},
	"LIKE": {}, "NOT LIKE": {},
}

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, user_id, amount, due_date, status, created_at, updated_at`

// ListByUser returns one page of the user's invoices, optionally
// filtered on status with an allowlisted operator. An unknown operator
// silently falls back to equality. The second return value is the
// total row count for the filter.
func (r *Repository) ListByUser(ctx context.Context, userID, status, operator string, page, perPage int) ([]Invoice, int, error) {
	filter := ` FROM invoices WHERE user_id = $1`
	args := []any{userID}

	if status != "" {
		op := operator
		if _, ok := allowedOperators[op]; !ok {
			op = "="
		}
		switch op {
		case "LIKE", "NOT LIKE":
			filter += ` AND status ` + op + ` '%' || $2 || '%'`
		default:
			filter += ` AND status ` + op + ` $2`
		}
		args = append(args, status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("billing: count invoices: %w", err)
	}

	pg := shared.NewPagination(page, perPage, total)
	query := `SELECT ` + invoiceColumns + filter +
		fmt.Sprintf(` ORDER BY due_date LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pg.PerPage, pg.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("billing: list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.Amount, &inv.DueDate, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("billing: scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("billing: list invoices: %w", err)
	}
	return invoices, total, nil
}

// Get fetches a single invoice by id.
func (r *Repository) Get(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id,
	).Scan(&inv.ID, &inv.UserID, &inv.Amount, &inv.DueDate, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("billing: get invoice: %w", err)
	}
	return &inv, nil
}

// MarkPaid settles an invoice with a single conditional update scoped
// to (id, owner). Two racing settlements cannot both succeed, and a
// caller can never flip another user's invoice.
func (r *Repository) MarkPaid(ctx context.Context, id, userID string) error {
	var settled string
	err := r.pool.QueryRow(ctx, `
		UPDATE invoices SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status <> $3
		RETURNING id`,
		id, userID, StatusPaid,
	).Scan(&settled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return fmt.Errorf("billing: mark paid: %w", err)
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
