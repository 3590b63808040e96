package service

import (
	"errors"
	"fmt"
)

// ErrorCode classifies business failures
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeInvalidState      ErrorCode = "INVALID_STATE"
	CodeInvalidItem       ErrorCode = "INVALID_ITEM"
	CodeFormLocked        ErrorCode = "FORM_LOCKED"
	CodeInvoiceDuplicate  ErrorCode = "INVOICE_DUPLICATE"
	CodeLoanNotFound      ErrorCode = "LOAN_NOT_FOUND"
	CodeUserMismatch      ErrorCode = "USER_MISMATCH"
	CodeLoanInvalidStatus ErrorCode = "LOAN_INVALID_STATUS"
	CodeLoanInsufficient  ErrorCode = "LOAN_INSUFFICIENT"
	CodeOffsetInvalid     ErrorCode = "OFFSET_INVALID"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeInternal          ErrorCode = "INTERNAL"
)

// Error is a typed business failure
type Error struct {
	Code    ErrorCode
	Message string
	Details interface{}
	Err     error
}

// Sentinels for errors.Is comparisons; matching is by code only.
var (
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrForbidden         = &Error{Code: CodeForbidden}
	ErrInvalidState      = &Error{Code: CodeInvalidState}
	ErrInvalidItem       = &Error{Code: CodeInvalidItem}
	ErrFormLocked        = &Error{Code: CodeFormLocked}
	ErrInvoiceDuplicate  = &Error{Code: CodeInvoiceDuplicate}
	ErrLoanNotFound      = &Error{Code: CodeLoanNotFound}
	ErrUserMismatch      = &Error{Code: CodeUserMismatch}
	ErrLoanInvalidStatus = &Error{Code: CodeLoanInvalidStatus}
	ErrLoanInsufficient  = &Error{Code: CodeLoanInsufficient}
	ErrOffsetInvalid     = &Error{Code: CodeOffsetInvalid}
	ErrInvalidInput      = &Error{Code: CodeInvalidInput}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) withDetails(details interface{}) *Error {
	e.Details = details
	return e
}

func (e *Error) wrap(err error) *Error {
	e.Err = err
	return e
}

// AsError extracts a business error from err
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func errFormNotFound(id int64) *Error {
	return newError(CodeNotFound, "reimbursement form %d not found", id)
}

func errFormLocked(id int64, reason string) *Error {
	return newError(CodeFormLocked, "reimbursement form %d is locked", id).
		withDetails(map[string]interface{}{"form_id": id, "lock_reason": reason})
}
