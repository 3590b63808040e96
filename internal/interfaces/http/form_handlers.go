package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-reimbursement/internal/application/service"
)

// SaveFormRequest is the body of create, update and recreate
type SaveFormRequest struct {
	Items []service.ItemInput `json:"items"`
	Mode  service.SaveMode    `json:"mode"`
}

func (r *SaveFormRequest) mode() service.SaveMode {
	if r.Mode == "" {
		return service.SaveModeDraft
	}
	return r.Mode
}

// ListFormsRequest represents query parameters for listing forms
type ListFormsRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// CreateForm handles POST /api/forms
func (h *Handlers) CreateForm(c *gin.Context) {
	var req SaveFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: %v", err)
		return
	}

	result, err := h.services.Forms.Create(c.Request.Context(), actorFrom(c), req.Items, req.mode())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, result)
}

// ListForms handles GET /api/forms
func (h *Handlers) ListForms(c *gin.Context) {
	var req ListFormsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters: %v", err)
		return
	}

	forms, err := h.services.Forms.List(c.Request.Context(), actorFrom(c), service.FormListFilter{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, forms)
}

// GetForm handles GET /api/forms/:id
func (h *Handlers) GetForm(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	detail, err := h.services.Forms.Get(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, detail)
}

// UpdateForm handles PUT /api/forms/:id
func (h *Handlers) UpdateForm(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req SaveFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: %v", err)
		return
	}

	form, err := h.services.Forms.Update(c.Request.Context(), id, actorFrom(c), req.Items, req.mode())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, form)
}

// DeleteForm handles DELETE /api/forms/:id
func (h *Handlers) DeleteForm(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.services.Forms.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, gin.H{"form_id": id, "deleted": true})
}

// SubmitForm handles POST /api/forms/:id/submit
func (h *Handlers) SubmitForm(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	form, err := h.services.Forms.Submit(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, form)
}

// WithdrawForm handles POST /api/forms/:id/withdraw
func (h *Handlers) WithdrawForm(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	form, err := h.services.Forms.Withdraw(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, form)
}

// RecreateForm handles POST /api/forms/:id/recreate
func (h *Handlers) RecreateForm(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req SaveFormRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body: %v", err)
			return
		}
	}

	result, err := h.services.Forms.CreateFromRejected(c.Request.Context(), id, actorFrom(c), req.Items, req.mode())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, result)
}

// LockForm handles POST /api/forms/:id/lock
func (h *Handlers) LockForm(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if !actorFrom(c).HasRole(service.RoleAdmin) {
		h.forbidden(c, "only administrators may lock forms")
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: %v", err)
		return
	}

	if err := h.services.Forms.LockForm(c.Request.Context(), id, req.Reason); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, gin.H{"form_id": id, "is_locked": true})
}

// ReviewForm handles POST /api/forms/:id/review
func (h *Handlers) ReviewForm(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: %v", err)
		return
	}

	result, err := h.services.Approval.Review(c.Request.Context(), id, actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, result)
}

// ApprovalHistory handles GET /api/forms/:id/approval-history
func (h *Handlers) ApprovalHistory(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	history, err := h.services.Approval.History(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, history)
}

// LinkLoans handles PUT /api/forms/:id/loan-links
func (h *Handlers) LinkLoans(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req struct {
		LoanLinks []service.LoanLinkInput `json:"loan_links"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: %v", err)
		return
	}

	form, err := h.services.Settlement.LinkLoans(c.Request.Context(), id, req.LoanLinks, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, form)
}

// ConfirmPayment handles POST /api/forms/:id/confirm-payment
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req service.PaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body: %v", err)
			return
		}
	}

	result, err := h.services.Settlement.ConfirmPayment(c.Request.Context(), id, req, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, result)
}

// ExportExcel handles GET /api/forms/:id/export
func (h *Handlers) ExportExcel(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	file, err := h.services.Export.ExportExcel(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.download(c, file)
}

// ExportPackage handles GET /api/forms/:id/export/package
func (h *Handlers) ExportPackage(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	file, err := h.services.Export.ExportPackage(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.download(c, file)
}
