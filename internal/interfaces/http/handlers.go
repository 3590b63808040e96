package http

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/application/service"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	backuper port.Backuper
	config   ServerConfig
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, backuper port.Backuper, config ServerConfig, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		backuper: backuper,
		config:   config,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	h.ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// InvoiceCheckResponse is the result of a single invoice lookup
type InvoiceCheckResponse struct {
	InvoiceNumber string                   `json:"invoice_number"`
	Available     bool                     `json:"available"`
	Conflict      *service.InvoiceConflict `json:"conflict,omitempty"`
}

// CheckInvoice handles GET /api/invoices/check
func (h *Handlers) CheckInvoice(c *gin.Context) {
	var req struct {
		InvoiceNumber string `form:"invoice_number" binding:"required"`
		ExcludeFormID int64  `form:"exclude_form_id"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters: %v", err)
		return
	}

	normalized := service.NormalizeInvoiceNumber(req.InvoiceNumber)
	if normalized == "" {
		h.badRequest(c, "invoice number has no letters or digits")
		return
	}

	conflict, err := h.services.Invoices.CheckAvailability(c.Request.Context(), normalized, req.ExcludeFormID)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, InvoiceCheckResponse{
		InvoiceNumber: normalized,
		Available:     conflict == nil,
		Conflict:      conflict,
	})
}

// BatchCheckInvoices handles POST /api/invoices/batch-check
func (h *Handlers) BatchCheckInvoices(c *gin.Context) {
	var req struct {
		InvoiceNumbers []string `json:"invoice_numbers" binding:"required"`
		ExcludeFormID  int64    `json:"exclude_form_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: %v", err)
		return
	}

	conflicts, err := h.services.Invoices.BatchCheck(c.Request.Context(), req.InvoiceNumbers, req.ExcludeFormID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if conflicts == nil {
		conflicts = []service.InvoiceConflict{}
	}

	h.ok(c, http.StatusOK, gin.H{
		"available": len(conflicts) == 0,
		"conflicts": conflicts,
	})
}

// UploadAttachment handles POST /api/attachments
func (h *Handlers) UploadAttachment(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, "multipart field \"file\" is required")
		return
	}

	maxSize := h.config.MaxUploadSize
	if maxSize <= 0 {
		maxSize = service.DefaultMaxUploadSize
	}
	if fh.Size > maxSize {
		h.badRequest(c, "uploaded file exceeds %d bytes", maxSize)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		h.fail(c, fmt.Errorf("read upload: %w", err))
		return
	}

	temp, err := h.services.Attachments.Stage(c.Request.Context(), actorFrom(c), fh.Filename, content)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, temp)
}

// RecognizeInvoice handles POST /api/ocr/invoice
func (h *Handlers) RecognizeInvoice(c *gin.Context) {
	var req struct {
		TempID string `json:"temp_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: %v", err)
		return
	}

	fields, err := h.services.OCR.RecognizeTemp(c.Request.Context(), actorFrom(c), req.TempID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, fields)
}

// OutstandingLoans handles GET /api/loans/outstanding
func (h *Handlers) OutstandingLoans(c *gin.Context) {
	var userID int64
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.badRequest(c, "invalid user_id %q", raw)
			return
		}
		userID = id
	}

	loans, err := h.services.Loans.Outstanding(c.Request.Context(), actorFrom(c), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, loans)
}

// GetLoan handles GET /api/loans/:id
func (h *Handlers) GetLoan(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	loan, err := h.services.Loans.Get(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, loan)
}

// CreateLoan handles POST /api/loans
func (h *Handlers) CreateLoan(c *gin.Context) {
	var req service.LoanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: %v", err)
		return
	}

	loan, err := h.services.Loans.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, loan)
}

// Backup handles POST /api/admin/backup
func (h *Handlers) Backup(c *gin.Context) {
	if !actorFrom(c).HasRole(service.RoleAdmin) {
		h.forbidden(c, "only administrators may back up the database")
		return
	}
	if h.backuper == nil {
		h.fail(c, &service.Error{Code: service.CodeInvalidState, Message: "backup not configured"})
		return
	}

	if err := os.MkdirAll(h.config.BackupDir, 0o755); err != nil {
		h.fail(c, fmt.Errorf("create backup dir: %w", err))
		return
	}
	dest := filepath.Join(h.config.BackupDir, "manual-"+time.Now().Format("20060102-150405.000")+".db")

	if err := h.backuper.Backup(c.Request.Context(), dest); err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Manual backup written", "path", dest, "user_id", actorFrom(c).UserID)
	h.ok(c, http.StatusOK, gin.H{"path": dest})
}

// pathID parses the :id route parameter
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid id %q", c.Param("id"))
		return 0, false
	}
	return id, true
}
