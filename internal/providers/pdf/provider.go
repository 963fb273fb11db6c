package pdf

import (
	"context"
	"io"
)

// InvoiceData is everything the invoice document shows.
type InvoiceData struct {
	InvoiceNumber    string
	IssueDate        string
	PaymentReference string

	SellerName    string
	SellerAddress string
	SellerEmail   string

	CustomerName  string
	CustomerEmail string

	Items []InvoiceItem

	Total string
}

type InvoiceItem struct {
	Description string
	Qty         int
	UnitPrice   string
	Amount      string
}

// GiftCardData is everything the printable gift card shows.
type GiftCardData struct {
	Code          string
	Amount        string
	RecipientName string
	Message       string
	ExpiresAt     string
	SellerName    string
}

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
	GenerateGiftCard(ctx context.Context, data GiftCardData) (io.Reader, error)
}
