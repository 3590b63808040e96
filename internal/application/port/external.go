package port

import "context"

// RecognizedInvoice holds the fields an OCR engine extracted from a receipt
type RecognizedInvoice struct {
	InvoiceCode   string
	InvoiceNumber string
	InvoiceDate   string
	TotalAmount   float64
	BuyerName     string
	SellerName    string
	ServiceName   string
	Confidence    float64
}

// InvoiceRecognizer extracts invoice fields from an image or PDF
type InvoiceRecognizer interface {
	Recognize(ctx context.Context, content []byte, mimeType string) (*RecognizedInvoice, error)
}

// Notification is a short human readable message about a form event
type Notification struct {
	Title string
	Body  string
}

// Notifier delivers notifications to a chat channel
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ActionLogger is the audit sink for completed mutations
type ActionLogger interface {
	LogAction(ctx context.Context, userID int64, action, detail string) error
}

// Backuper writes a consistent copy of the database to dest
type Backuper interface {
	Backup(ctx context.Context, dest string) error
}
