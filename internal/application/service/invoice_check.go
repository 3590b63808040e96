package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
)

// invoiceNumberLength is how many trailing alphanumerics identify an invoice
const invoiceNumberLength = 8

// InvoiceConflict describes who already holds an invoice number.
// FormID is zero when the collision is inside the checked batch itself.
type InvoiceConflict struct {
	InvoiceNumber string         `json:"invoice_number"`
	FormID        int64          `json:"form_id"`
	FormNumber    string         `json:"form_number,omitempty"`
	FormStatus    workflow.State `json:"form_status,omitempty"`
	UserID        int64          `json:"user_id,omitempty"`
}

// InvoiceChecker answers invoice-number availability questions
type InvoiceChecker interface {
	CheckAvailability(ctx context.Context, number string, excludeFormID int64) (*InvoiceConflict, error)
	BatchCheck(ctx context.Context, numbers []string, excludeFormID int64) ([]InvoiceConflict, error)
}

type invoiceCheckerImpl struct {
	records port.RecordRepository
	logger  Logger
}

// NewInvoiceChecker creates a new InvoiceChecker
func NewInvoiceChecker(records port.RecordRepository, logger Logger) InvoiceChecker {
	return &invoiceCheckerImpl{
		records: records,
		logger:  logger,
	}
}

// NormalizeInvoiceNumber keeps the last eight ASCII letters and digits, upper-cased
func NormalizeInvoiceNumber(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	s := b.String()
	if len(s) > invoiceNumberLength {
		s = s[len(s)-invoiceNumberLength:]
	}
	return s
}

// CheckAvailability returns the first holder of number, or nil when it is free
func (c *invoiceCheckerImpl) CheckAvailability(ctx context.Context, number string, excludeFormID int64) (*InvoiceConflict, error) {
	conflicts, err := c.BatchCheck(ctx, []string{number}, excludeFormID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) == 0 {
		return nil, nil
	}
	return &conflicts[0], nil
}

// BatchCheck reports every collision, in input order
func (c *invoiceCheckerImpl) BatchCheck(ctx context.Context, numbers []string, excludeFormID int64) ([]InvoiceConflict, error) {
	var (
		conflicts  []InvoiceConflict
		normalized []string
		seen       = make(map[string]bool)
	)

	for _, raw := range numbers {
		n := NormalizeInvoiceNumber(raw)
		if n == "" {
			continue
		}
		if seen[n] {
			conflicts = append(conflicts, InvoiceConflict{InvoiceNumber: n})
			continue
		}
		seen[n] = true
		normalized = append(normalized, n)
	}

	if len(normalized) == 0 {
		return conflicts, nil
	}

	holders, err := c.records.FindInvoiceHolders(ctx, normalized, excludeFormID)
	if err != nil {
		c.logger.Error("Failed to check invoice numbers", "error", err)
		return nil, fmt.Errorf("check invoice numbers: %w", err)
	}

	byNumber := make(map[string][]port.InvoiceHolder, len(holders))
	for _, h := range holders {
		byNumber[h.InvoiceNumber] = append(byNumber[h.InvoiceNumber], h)
	}

	var stored []InvoiceConflict
	for _, n := range normalized {
		for _, h := range byNumber[n] {
			stored = append(stored, InvoiceConflict{
				InvoiceNumber: h.InvoiceNumber,
				FormID:        h.FormID,
				FormNumber:    h.FormNumber,
				FormStatus:    h.FormStatus,
				UserID:        h.UserID,
			})
		}
	}

	return append(stored, conflicts...), nil
}

func errInvoiceDuplicate(c InvoiceConflict) *Error {
	if c.FormID == 0 {
		return newError(CodeInvoiceDuplicate, "invoice number %s is used more than once in this form", c.InvoiceNumber).
			withDetails(c)
	}
	return newError(CodeInvoiceDuplicate, "invoice number %s is already used by form %s (%s)",
		c.InvoiceNumber, c.FormNumber, c.FormStatus.Label()).
		withDetails(c)
}
