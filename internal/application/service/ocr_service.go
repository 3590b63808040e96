package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/money"
)

// InvoiceFields are the recognized fields of a staged receipt, ready to prefill an item
type InvoiceFields struct {
	TempID           string           `json:"temp_id"`
	InvoiceNumber    string           `json:"invoice_number"`
	RawInvoiceNumber string           `json:"raw_invoice_number"`
	InvoiceCode      string           `json:"invoice_code,omitempty"`
	InvoiceDate      string           `json:"invoice_date,omitempty"`
	Amount           float64          `json:"amount"`
	BuyerName        string           `json:"buyer_name,omitempty"`
	SellerName       string           `json:"seller_name,omitempty"`
	ServiceName      string           `json:"service_name,omitempty"`
	Confidence       float64          `json:"confidence"`
	Duplicate        *InvoiceConflict `json:"duplicate,omitempty"`
}

// OCRService reads invoice fields from staged uploads
type OCRService interface {
	RecognizeTemp(ctx context.Context, actor Actor, tempID string) (*InvoiceFields, error)
}

type ocrServiceImpl struct {
	recognizer  port.InvoiceRecognizer
	attachments AttachmentService
	invoices    InvoiceChecker
	logger      Logger
}

// NewOCRService creates a new OCRService; a nil recognizer leaves OCR disabled
func NewOCRService(recognizer port.InvoiceRecognizer, attachments AttachmentService, invoices InvoiceChecker, logger Logger) OCRService {
	return &ocrServiceImpl{
		recognizer:  recognizer,
		attachments: attachments,
		invoices:    invoices,
		logger:      logger,
	}
}

// RecognizeTemp runs recognition on a staged upload and flags an already used invoice number
func (s *ocrServiceImpl) RecognizeTemp(ctx context.Context, actor Actor, tempID string) (*InvoiceFields, error) {
	if s.recognizer == nil {
		return nil, newError(CodeInvalidState, "ocr not configured")
	}

	temp, content, err := s.attachments.ReadTemp(ctx, actor, tempID)
	if err != nil {
		return nil, err
	}

	rec, err := s.recognizer.Recognize(ctx, content, temp.FileType)
	if err != nil {
		s.logger.Error("Invoice recognition failed", "error", err, "temp_id", tempID)
		return nil, fmt.Errorf("recognize invoice: %w", err)
	}

	fields := &InvoiceFields{
		TempID:           tempID,
		InvoiceNumber:    NormalizeInvoiceNumber(rec.InvoiceNumber),
		RawInvoiceNumber: rec.InvoiceNumber,
		InvoiceCode:      rec.InvoiceCode,
		InvoiceDate:      rec.InvoiceDate,
		Amount:           money.Round2(rec.TotalAmount),
		BuyerName:        rec.BuyerName,
		SellerName:       rec.SellerName,
		ServiceName:      rec.ServiceName,
		Confidence:       rec.Confidence,
	}

	if fields.InvoiceNumber != "" {
		if fields.Duplicate, err = s.invoices.CheckAvailability(ctx, fields.InvoiceNumber, 0); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Invoice recognized", "temp_id", tempID,
		"invoice_number", fields.InvoiceNumber, "duplicate", fields.Duplicate != nil)
	return fields, nil
}
