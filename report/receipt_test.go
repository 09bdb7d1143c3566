package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureRenderer struct {
	html string
}

func (r *captureRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	r.html = html
	return []byte("%PDF-1.7"), nil
}

func TestReceiptGenerator(t *testing.T) {
	renderer := &captureRenderer{}
	gen := NewReceiptGenerator(renderer)

	pdf, err := gen.Generate(context.Background(), ReceiptData{
		InvoiceID: "8f14e45f-ceea-4a76-a2b4-9f66cf3a9b01",
		Amount:    120.5,
		PaidAt:    time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.7"), pdf)
	require.True(t, strings.Contains(renderer.html, "8f14e45f-ceea-4a76-a2b4-9f66cf3a9b01"))
	require.True(t, strings.Contains(renderer.html, "120.50"))
}

func TestReceiptFileName(t *testing.T) {
	require.Equal(t, "receipt-inv-9.pdf", ReceiptFileName("inv-9"))
}
