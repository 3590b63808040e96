package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
)

const (
	resubmitRemarkPrefix = "重新申请："
	defaultListLimit     = 50
	maxListLimit         = 200
)

// FormService manages the reimbursement form lifecycle
type FormService interface {
	Create(ctx context.Context, actor Actor, items []ItemInput, mode SaveMode) (*CreateResult, error)
	Update(ctx context.Context, formID int64, actor Actor, items []ItemInput, mode SaveMode) (*entity.ReimbursementForm, error)
	Submit(ctx context.Context, formID int64, actor Actor) (*entity.ReimbursementForm, error)
	Withdraw(ctx context.Context, formID int64, actor Actor) (*entity.ReimbursementForm, error)
	Delete(ctx context.Context, formID int64, actor Actor) error

	// CreateFromRejected starts a new form from a rejected one. With no items
	// the rejected form's records and voucher files are copied.
	CreateFromRejected(ctx context.Context, rejectedFormID int64, actor Actor, items []ItemInput, mode SaveMode) (*CreateResult, error)

	LockForm(ctx context.Context, formID int64, reason string) error
	Get(ctx context.Context, formID int64, actor Actor) (*FormDetail, error)
	List(ctx context.Context, actor Actor, filter FormListFilter) ([]*entity.ReimbursementForm, error)
}

type formServiceImpl struct {
	repos       Repositories
	invoices    InvoiceChecker
	numbers     *FormNumberGenerator
	attachments AttachmentService
	storage     port.FileStorage
	auditor     *Auditor
	logger      Logger
}

// NewFormService creates a new FormService
func NewFormService(
	repos Repositories,
	invoices InvoiceChecker,
	numbers *FormNumberGenerator,
	attachments AttachmentService,
	storage port.FileStorage,
	auditor *Auditor,
	logger Logger,
) FormService {
	return &formServiceImpl{
		repos:       repos,
		invoices:    invoices,
		numbers:     numbers,
		attachments: attachments,
		storage:     storage,
		auditor:     auditor,
		logger:      logger,
	}
}

// Create validates the items, checks invoice numbers and inserts the form in one transaction
func (s *formServiceImpl) Create(ctx context.Context, actor Actor, items []ItemInput, mode SaveMode) (*CreateResult, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	items, err := validateItems(items)
	if err != nil {
		return nil, err
	}
	if err := s.checkInvoices(ctx, items, 0); err != nil {
		return nil, err
	}

	files := &FileChanges{}
	var result *CreateResult

	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = s.insertForm(txCtx, actor, items, mode, files)
		return err
	})
	if err != nil {
		files.Rollback(ctx, s.storage, s.logger)
		s.logger.Error("Failed to create form", "error", err, "user_id", actor.UserID)
		return nil, err
	}
	files.Commit(ctx, s.storage, s.logger)

	s.logger.Info("Form created", "form_id", result.FormID, "form_number", result.FormNumber, "status", result.Status)
	s.auditor.LogAction(ctx, actor.UserID, ActionFormCreateAuto,
		fmt.Sprintf("form %s created with %d items, total %.2f", result.FormNumber, len(items), result.TotalAmount))
	return result, nil
}

// insertForm writes a new form, its records and vouchers. It runs inside the caller's transaction.
func (s *formServiceImpl) insertForm(ctx context.Context, actor Actor, items []ItemInput, mode SaveMode, files *FileChanges) (*CreateResult, error) {
	status := workflow.StateDraft
	if mode == SaveModeSubmit {
		next, err := workflow.Next(workflow.StateDraft, workflow.TriggerSubmit, false)
		if err != nil {
			return nil, err
		}
		status = next
	}

	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	form := &entity.ReimbursementForm{
		FormNumber:            number,
		UserID:                actor.UserID,
		Status:                status,
		CanCreateFromRejected: true,
		CreatedAt:             now,
	}
	if err := s.repos.Forms.Create(ctx, form); err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}

	ids := make([]int64, 0, len(items))
	for _, in := range items {
		record := in.toRecord(form.ID, actor.UserID)
		if err := s.repos.Records.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("create record: %w", err)
		}
		if err := s.linkAttachments(ctx, form.ID, record.ID, in.TempAttachmentIDs, actor, files); err != nil {
			return nil, err
		}
		ids = append(ids, record.ID)
	}

	amounts, err := recalcTotals(ctx, s.repos, form.ID)
	if err != nil {
		return nil, err
	}

	if status == workflow.StateSubmitted {
		entry := newApprovalLog(form.ID, entity.ApprovalActionSubmit, nil, nil, actor, "", now)
		if err := s.repos.ApprovalLogs.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("append submit log: %w", err)
		}
	}

	return &CreateResult{
		FormID:           form.ID,
		FormNumber:       form.FormNumber,
		Status:           status,
		TotalAmount:      amounts.TotalAmount,
		ReimbursementIDs: ids,
	}, nil
}

func (s *formServiceImpl) linkAttachments(ctx context.Context, formID, recordID int64, tempIDs []string, actor Actor, files *FileChanges) error {
	for _, tempID := range tempIDs {
		if strings.TrimSpace(tempID) == "" {
			continue
		}
		if _, err := s.attachments.LinkTemp(ctx, formID, recordID, tempID, actor, files); err != nil {
			return err
		}
	}
	return nil
}

// Update diffs the items against the stored records and optionally submits the form
func (s *formServiceImpl) Update(ctx context.Context, formID int64, actor Actor, items []ItemInput, mode SaveMode) (*entity.ReimbursementForm, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return nil, err
	}
	if form.UserID != actor.UserID {
		return nil, newError(CodeForbidden, "only the owner can edit form %d", formID)
	}
	if form.IsLocked {
		return nil, errFormLocked(form.ID, form.LockReason)
	}
	if !form.Status.IsEditable() {
		return nil, newError(CodeInvalidState, "form %d cannot be edited in status %s", formID, form.Status)
	}

	items, err = validateItems(items)
	if err != nil {
		return nil, err
	}

	existing, err := s.repos.Records.GetByFormID(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	byID := make(map[int64]*entity.ReimbursementRecord, len(existing))
	for _, r := range existing {
		byID[r.ID] = r
	}
	seen := make(map[int64]bool, len(items))
	for i, in := range items {
		if in.ID == nil {
			continue
		}
		if byID[*in.ID] == nil || seen[*in.ID] {
			return nil, newError(CodeInvalidItem, "item %d: record %d does not belong to form %d or is listed twice", i+1, *in.ID, formID).
				withDetails(map[string]interface{}{"index": i, "field": "id"})
		}
		seen[*in.ID] = true
	}

	if err := s.checkInvoices(ctx, items, formID); err != nil {
		return nil, err
	}

	next := form.Status
	if mode == SaveModeSubmit {
		if next, err = transition(form, workflow.TriggerSubmit); err != nil {
			return nil, err
		}
	}

	files := &FileChanges{}
	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		kept := make(map[int64]bool, len(items))

		for _, in := range items {
			var recordID int64
			if in.ID != nil {
				record := byID[*in.ID]
				kept[record.ID] = true
				recordID = record.ID
				if in.changed(record) {
					applyItem(record, in)
					if err := s.repos.Records.Update(txCtx, record); err != nil {
						return fmt.Errorf("update record: %w", err)
					}
				}
			} else {
				record := in.toRecord(formID, form.UserID)
				if err := s.repos.Records.Create(txCtx, record); err != nil {
					return fmt.Errorf("create record: %w", err)
				}
				recordID = record.ID
			}
			if err := s.linkAttachments(txCtx, formID, recordID, in.TempAttachmentIDs, actor, files); err != nil {
				return err
			}
		}

		for _, r := range existing {
			if kept[r.ID] {
				continue
			}
			orphans, err := s.repos.Vouchers.DeleteByRecordID(txCtx, r.ID)
			if err != nil {
				return fmt.Errorf("delete vouchers: %w", err)
			}
			for _, v := range orphans {
				files.Obsolete(v.FilePath)
			}
			if err := s.repos.Records.Delete(txCtx, r.ID); err != nil {
				return fmt.Errorf("delete record: %w", err)
			}
		}

		amounts, err := recalcTotals(txCtx, s.repos, formID)
		if err != nil {
			return err
		}
		if _, err := dropLoanLinksIfExceeded(txCtx, s.repos, formID, amounts, s.logger); err != nil {
			return err
		}

		return s.applySubmit(txCtx, form, next, actor)
	})
	if err != nil {
		files.Rollback(ctx, s.storage, s.logger)
		s.logger.Error("Failed to update form", "error", err, "form_id", formID)
		return nil, err
	}
	files.Commit(ctx, s.storage, s.logger)

	s.logger.Info("Form updated", "form_id", formID, "status", next)
	s.auditor.LogAction(ctx, actor.UserID, ActionFormUpdate,
		fmt.Sprintf("form %s updated with %d items (%s)", form.FormNumber, len(items), mode))
	return loadForm(ctx, s.repos.Forms, formID)
}

// applySubmit persists a move to next; resubmitting a rejected form resets its review first
func (s *formServiceImpl) applySubmit(ctx context.Context, form *entity.ReimbursementForm, next workflow.State, actor Actor) error {
	if next == form.Status {
		return nil
	}

	now := time.Now().UTC()
	if form.Status.IsRejected() {
		if err := resetReview(ctx, s.repos, form.ID, now); err != nil {
			return err
		}
	}
	if err := s.repos.Forms.UpdateStatus(ctx, form.ID, next); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	entry := newApprovalLog(form.ID, entity.ApprovalActionSubmit, nil, nil, actor, "", now)
	if err := s.repos.ApprovalLogs.Append(ctx, entry); err != nil {
		return fmt.Errorf("append submit log: %w", err)
	}
	return nil
}

func applyItem(r *entity.ReimbursementRecord, in ItemInput) {
	r.Amount = in.Amount
	r.Purpose = in.Purpose
	r.Type = in.Type
	r.Remark = in.Remark
	r.InvoiceNumber = in.InvoiceNumber
	r.InvoiceDate = in.InvoiceDate
	r.BuyerName = in.BuyerName
	r.ServiceName = in.ServiceName
}

// Submit moves a draft or rejected form to submitted. Forms already submitted or further along are returned unchanged.
func (s *formServiceImpl) Submit(ctx context.Context, formID int64, actor Actor) (*entity.ReimbursementForm, error) {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return nil, err
	}
	if form.UserID != actor.UserID {
		return nil, newError(CodeForbidden, "only the owner can submit form %d", formID)
	}
	if form.Status.IsSubmittedOrBeyond() {
		return form, nil
	}
	if form.IsLocked {
		return nil, errFormLocked(form.ID, form.LockReason)
	}

	next, err := transition(form, workflow.TriggerSubmit)
	if err != nil {
		return nil, err
	}

	records, err := s.repos.Records.GetByFormID(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	if len(records) == 0 {
		return nil, newError(CodeInvalidState, "form %d has no items to submit", formID)
	}

	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.applySubmit(txCtx, form, next, actor)
	})
	if err != nil {
		s.logger.Error("Failed to submit form", "error", err, "form_id", formID)
		return nil, err
	}

	s.logger.Info("Form submitted", "form_id", formID, "from", form.Status)
	s.auditor.LogAction(ctx, actor.UserID, ActionFormSubmit, fmt.Sprintf("form %s submitted", form.FormNumber))
	return loadForm(ctx, s.repos.Forms, formID)
}

// Withdraw takes a submitted form back to draft; the approval ledger is left untouched
func (s *formServiceImpl) Withdraw(ctx context.Context, formID int64, actor Actor) (*entity.ReimbursementForm, error) {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return nil, err
	}
	if form.UserID != actor.UserID {
		return nil, newError(CodeForbidden, "only the owner can withdraw form %d", formID)
	}
	if form.IsLocked {
		return nil, errFormLocked(form.ID, form.LockReason)
	}

	next, err := transition(form, workflow.TriggerWithdraw)
	if err != nil {
		return nil, err
	}

	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repos.Forms.UpdateStatus(txCtx, formID, next); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if err := s.repos.Records.ResetApproval(txCtx, formID); err != nil {
			return fmt.Errorf("reset records: %w", err)
		}
		return s.repos.Forms.UpdateReviewCounters(txCtx, formID, 0, 0)
	})
	if err != nil {
		s.logger.Error("Failed to withdraw form", "error", err, "form_id", formID)
		return nil, err
	}

	s.logger.Info("Form withdrawn", "form_id", formID)
	s.auditor.LogAction(ctx, actor.UserID, ActionFormWithdraw, fmt.Sprintf("form %s withdrawn", form.FormNumber))
	return loadForm(ctx, s.repos.Forms, formID)
}

// Delete removes a form that never received an approval or payment, with everything hanging off it
func (s *formServiceImpl) Delete(ctx context.Context, formID int64, actor Actor) error {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return err
	}
	if form.UserID != actor.UserID && actor.Role != RoleAdmin {
		return newError(CodeForbidden, "only the owner or an admin can delete form %d", formID)
	}
	if !form.Status.IsEditable() {
		return newError(CodeInvalidState, "form %d cannot be deleted in status %s", formID, form.Status)
	}
	if err := s.ensureNeverApproved(ctx, form); err != nil {
		return err
	}

	files := &FileChanges{}
	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repos.ApprovalLogs.DeleteByFormID(txCtx, formID); err != nil {
			return err
		}
		if err := s.reopenRejectedSources(txCtx, formID); err != nil {
			return err
		}
		if err := s.repos.Lineage.DeleteByFormID(txCtx, formID); err != nil {
			return err
		}
		vouchers, err := s.repos.Vouchers.DeleteByFormID(txCtx, formID)
		if err != nil {
			return err
		}
		for _, v := range vouchers {
			files.Obsolete(v.FilePath)
		}
		if err := s.repos.Records.DeleteByFormID(txCtx, formID); err != nil {
			return err
		}
		if err := s.repos.LoanLinks.DeleteByFormID(txCtx, formID); err != nil {
			return err
		}
		return s.repos.Forms.Delete(txCtx, formID)
	})
	if err != nil {
		s.logger.Error("Failed to delete form", "error", err, "form_id", formID)
		return err
	}
	files.Commit(ctx, s.storage, s.logger)

	s.logger.Info("Form deleted", "form_id", formID, "by", actor.UserID)
	s.auditor.LogAction(ctx, actor.UserID, ActionFormDelete, fmt.Sprintf("form %s deleted", form.FormNumber))
	return nil
}

// reopenRejectedSources lets a rejected form be recreated again once the form
// created from it is gone; its invoices count as held again from then on.
func (s *formServiceImpl) reopenRejectedSources(ctx context.Context, formID int64) error {
	parents, err := s.repos.Lineage.Parents(ctx, formID)
	if err != nil {
		return err
	}
	for _, p := range parents {
		if p.Level != entity.RelationCreatedFromRejected {
			continue
		}
		if err := s.repos.Forms.SetCanCreateFromRejected(ctx, p.FormID, true); err != nil {
			return fmt.Errorf("reopen rejected form %d: %w", p.FormID, err)
		}
		s.logger.Info("Rejected form reopened for recreation", "form_id", p.FormID, "deleted_form_id", formID)
	}
	return nil
}

// ensureNeverApproved guards the financial audit trail
func (s *formServiceImpl) ensureNeverApproved(ctx context.Context, form *entity.ReimbursementForm) error {
	blocked := func(reason string) error {
		return newError(CodeInvalidState, "form %d cannot be deleted: %s", form.ID, reason)
	}

	if form.PaidAt != nil {
		return blocked("it has been paid")
	}

	records, err := s.repos.Records.GetByFormID(ctx, form.ID)
	if err != nil {
		return fmt.Errorf("get records: %w", err)
	}
	for _, r := range records {
		if r.ApprovalStatus.IsApproved() {
			return blocked("it contains approved records")
		}
	}

	decided, err := s.repos.ApprovalLogs.HasDecision(ctx, form.ID)
	if err != nil {
		return err
	}
	if decided {
		return blocked("it has approval history")
	}

	split, err := s.repos.Lineage.HasSplit(ctx, form.ID)
	if err != nil {
		return err
	}
	if split {
		return blocked("it took part in a split")
	}
	return nil
}

// CreateFromRejected builds a new form from a rejected one, reusing its invoices and receipts
func (s *formServiceImpl) CreateFromRejected(ctx context.Context, rejectedFormID int64, actor Actor, items []ItemInput, mode SaveMode) (*CreateResult, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	source, err := loadForm(ctx, s.repos.Forms, rejectedFormID)
	if err != nil {
		return nil, err
	}
	if source.UserID != actor.UserID {
		return nil, newError(CodeForbidden, "only the owner can recreate form %d", rejectedFormID)
	}
	if !source.Status.IsRejected() {
		return nil, newError(CodeInvalidState, "form %d is not rejected", rejectedFormID)
	}
	if !source.CanCreateFromRejected {
		return nil, newError(CodeInvalidState, "a new form was already created from form %d", rejectedFormID)
	}

	var (
		sourceRecords []*entity.ReimbursementRecord
		vouchers      = make(map[int64][]*entity.Voucher)
	)
	copyRecords := len(items) == 0
	if copyRecords {
		sourceRecords, err = s.repos.Records.GetByFormID(ctx, rejectedFormID)
		if err != nil {
			return nil, fmt.Errorf("get records: %w", err)
		}
		linked, err := s.repos.Vouchers.GetByRecordIDs(ctx, recordIDs(sourceRecords))
		if err != nil {
			return nil, fmt.Errorf("get vouchers: %w", err)
		}
		for _, v := range linked {
			vouchers[v.RecordID] = append(vouchers[v.RecordID], v)
		}
		items = copyItems(sourceRecords)
	}

	items, err = validateItems(items)
	if err != nil {
		return nil, err
	}
	if err := s.checkInvoices(ctx, items, rejectedFormID); err != nil {
		return nil, err
	}

	files := &FileChanges{}
	var result *CreateResult

	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		for i, r := range sourceRecords {
			for _, v := range vouchers[r.ID] {
				temp, err := s.attachments.DuplicateToTemp(txCtx, v, actor.UserID, files)
				if err != nil {
					return err
				}
				items[i].TempAttachmentIDs = append(items[i].TempAttachmentIDs, temp.TempID)
			}
		}

		var err error
		if result, err = s.insertForm(txCtx, actor, items, mode, files); err != nil {
			return err
		}

		relation := &entity.FormRelation{
			RejectedFormID: rejectedFormID,
			NewFormID:      result.FormID,
			RelationType:   entity.RelationCreatedFromRejected,
			CreatedBy:      actor.UserID,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.repos.Lineage.CreateRelation(txCtx, relation); err != nil {
			return err
		}
		return s.repos.Forms.SetCanCreateFromRejected(txCtx, rejectedFormID, false)
	})
	if err != nil {
		files.Rollback(ctx, s.storage, s.logger)
		s.logger.Error("Failed to create form from rejected", "error", err, "rejected_form_id", rejectedFormID)
		return nil, err
	}
	files.Commit(ctx, s.storage, s.logger)

	s.logger.Info("Form created from rejected",
		"form_id", result.FormID, "rejected_form_id", rejectedFormID, "copied", copyRecords)
	s.auditor.LogAction(ctx, actor.UserID, ActionFormCreateFromRejected,
		fmt.Sprintf("form %s created from rejected form %s", result.FormNumber, source.FormNumber))
	return result, nil
}

func copyItems(records []*entity.ReimbursementRecord) []ItemInput {
	items := make([]ItemInput, len(records))
	for i, r := range records {
		remark := r.Remark
		if !strings.HasPrefix(remark, resubmitRemarkPrefix) {
			remark = resubmitRemarkPrefix + remark
		}
		items[i] = ItemInput{
			Amount:        r.Amount,
			Purpose:       r.Purpose,
			Type:          r.Type,
			Remark:        remark,
			InvoiceNumber: r.InvoiceNumber,
			InvoiceDate:   r.InvoiceDate,
			BuyerName:     r.BuyerName,
			ServiceName:   r.ServiceName,
		}
	}
	return items
}

// LockForm makes a form read-only
func (s *formServiceImpl) LockForm(ctx context.Context, formID int64, reason string) error {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return err
	}
	if form.IsLocked {
		return nil
	}
	if err := s.repos.Forms.Lock(ctx, formID, reason, time.Now().UTC()); err != nil {
		s.logger.Error("Failed to lock form", "error", err, "form_id", formID)
		return err
	}
	s.logger.Info("Form locked", "form_id", formID, "reason", reason)
	return nil
}

// Get returns a form with its records, vouchers and loan links
func (s *formServiceImpl) Get(ctx context.Context, formID int64, actor Actor) (*FormDetail, error) {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return nil, err
	}
	if form.UserID != actor.UserID && !actor.IsReviewer() {
		return nil, newError(CodeForbidden, "form %d is not visible to user %d", formID, actor.UserID)
	}
	return loadDetail(ctx, s.repos, form)
}

func loadDetail(ctx context.Context, repos Repositories, form *entity.ReimbursementForm) (*FormDetail, error) {
	records, err := repos.Records.GetByFormID(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	linked, err := repos.Vouchers.GetByRecordIDs(ctx, recordIDs(records))
	if err != nil {
		return nil, fmt.Errorf("get vouchers: %w", err)
	}
	links, err := repos.LoanLinks.GetByFormID(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("get loan links: %w", err)
	}

	vouchers := make(map[int64][]*entity.Voucher)
	for _, v := range linked {
		vouchers[v.RecordID] = append(vouchers[v.RecordID], v)
	}

	return &FormDetail{
		Form:      form,
		Records:   records,
		Vouchers:  vouchers,
		LoanLinks: links,
	}, nil
}

// List returns forms visible to the actor; employees only see their own
func (s *formServiceImpl) List(ctx context.Context, actor Actor, filter FormListFilter) ([]*entity.ReimbursementForm, error) {
	f := port.FormFilter{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	if filter.Status != "" {
		status, ok := workflow.NormalizeFormStatus(filter.Status)
		if !ok {
			return nil, newError(CodeInvalidInput, "unknown status %q", filter.Status)
		}
		f.Status = status
	}
	if !actor.IsReviewer() {
		uid := actor.UserID
		f.UserID = &uid
	}

	forms, err := s.repos.Forms.List(ctx, f)
	if err != nil {
		s.logger.Error("Failed to list forms", "error", err)
		return nil, err
	}
	return forms, nil
}

func (s *formServiceImpl) checkInvoices(ctx context.Context, items []ItemInput, excludeFormID int64) error {
	conflicts, err := s.invoices.BatchCheck(ctx, invoiceNumbers(items), excludeFormID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return errInvoiceDuplicate(conflicts[0])
	}
	return nil
}
