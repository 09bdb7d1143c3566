package billing

import "time"

// InvoiceStatus enumerates invoice settlement states.
type InvoiceStatus string

const (
	StatusUnpaid InvoiceStatus = "unpaid"
	StatusPaid   InvoiceStatus = "paid"
)

// Invoice model. Status is mutated only by payment settlement.
type Invoice struct {
	ID        string
	UserID    string
	Amount    float64
	DueDate   time.Time
	Status    InvoiceStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CardDetails is the payload forwarded to the payment processor. It is
// never persisted and never logged.
type CardDetails struct {
	Number     string `json:"ccNumber"`
	CCV        string `json:"ccv"`
	Expiration string `json:"expirationDate"`
}
