package report

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// ReceiptData carries the fields printed on a settlement receipt.
type ReceiptData struct {
	InvoiceID string
	Amount    float64
	PaidAt    time.Time
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Payment Receipt</title></head>
<body>
  <h1>Payment Receipt</h1>
  <p>Invoice: {{.InvoiceID}}</p>
  <p>Amount: {{printf "%.2f" .Amount}}</p>
  <p>Settled: {{.PaidAt.Format "2006-01-02 15:04 MST"}}</p>
  <p>Thank you for your payment.</p>
</body>
</html>`))

// PDFRenderer turns HTML into a PDF document.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// ReceiptGenerator renders settlement receipts as PDF.
type ReceiptGenerator struct {
	renderer PDFRenderer
}

// NewReceiptGenerator constructs a generator on top of a PDF renderer.
func NewReceiptGenerator(renderer PDFRenderer) *ReceiptGenerator {
	return &ReceiptGenerator{renderer: renderer}
}

// Generate renders the receipt document for one settled invoice.
func (g *ReceiptGenerator) Generate(ctx context.Context, data ReceiptData) ([]byte, error) {
	var buf strings.Builder
	if err := receiptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("report: render receipt template: %w", err)
	}
	pdf, err := g.renderer.RenderHTML(ctx, buf.String())
	if err != nil {
		return nil, fmt.Errorf("report: convert receipt: %w", err)
	}
	return pdf, nil
}

// ReceiptFileName returns the canonical receipt file name for an
// invoice. The name stays within the receipt naming policy enforced at
// read time.
func ReceiptFileName(invoiceID string) string {
	return "receipt-" + invoiceID + ".pdf"
}
