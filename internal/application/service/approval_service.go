package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/money"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
)

// maxCommentRunes bounds the stored review comment
const maxCommentRunes = 1000

// ReviewRequest partitions the records under review into approved and rejected
type ReviewRequest struct {
	ApprovedRecordIDs []int64          `json:"approved_record_ids"`
	RejectedRecordIDs []int64          `json:"rejected_record_ids"`
	Comment           string           `json:"comment"`
	RecordComments    map[int64]string `json:"record_comments"`
}

// ReviewResult describes what a review did to the form
type ReviewResult struct {
	FormID          int64          `json:"form_id"`
	Action          string         `json:"action"`
	Status          workflow.State `json:"status"`
	ChildFormID     int64          `json:"child_form_id,omitempty"`
	ChildFormNumber string         `json:"child_form_number,omitempty"`
	ChildStatus     workflow.State `json:"child_status,omitempty"`
}

// ApprovalService applies finance and manager decisions at record granularity
type ApprovalService interface {
	Review(ctx context.Context, formID int64, actor Actor, req ReviewRequest) (*ReviewResult, error)

	// History merges the form's ledger with its ancestors' through splits and recreations
	History(ctx context.Context, formID int64, actor Actor) ([]*entity.ApprovalLog, error)
}

type approvalServiceImpl struct {
	repos   Repositories
	numbers *FormNumberGenerator
	auditor *Auditor
	logger  Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(repos Repositories, numbers *FormNumberGenerator, auditor *Auditor, logger Logger) ApprovalService {
	return &approvalServiceImpl{
		repos:   repos,
		numbers: numbers,
		auditor: auditor,
		logger:  logger,
	}
}

// Review approves, rejects or splits the form depending on the partition
func (s *approvalServiceImpl) Review(ctx context.Context, formID int64, actor Actor, req ReviewRequest) (*ReviewResult, error) {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return nil, err
	}

	stage, inReview := workflow.StageFor(form.Status)
	if !s.allowed(actor, stage, inReview) {
		return nil, newError(CodeForbidden, "role %s cannot review form %d in status %s", actor.Role, formID, form.Status)
	}
	if form.IsLocked {
		return nil, errFormLocked(form.ID, form.LockReason)
	}
	if !inReview {
		return nil, newError(CodeInvalidState, "form %d is not awaiting review (status %s)", formID, form.Status)
	}

	records, err := s.repos.Records.GetByFormID(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	approved, rejected, err := partition(records, req)
	if err != nil {
		return nil, err
	}

	comment := buildReviewComment(req.Comment, req.RecordComments)
	result := &ReviewResult{FormID: formID}

	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		switch {
		case len(rejected) == 0:
			return s.approveAll(txCtx, form, stage, approved, actor, comment, result)
		case len(approved) == 0:
			return s.rejectAll(txCtx, form, stage, rejected, actor, req, comment, result)
		default:
			return s.split(txCtx, form, stage, approved, rejected, actor, req, comment, result)
		}
	})
	if err != nil {
		s.logger.Error("Failed to review form", "error", err, "form_id", formID, "stage", stage)
		return nil, err
	}

	s.logger.Info("Form reviewed",
		"form_id", formID, "stage", stage, "action", result.Action,
		"approved", len(approved), "rejected", len(rejected), "child_form_id", result.ChildFormID)

	s.auditor.LogAction(ctx, actor.UserID, ActionFormReview,
		fmt.Sprintf("form %s %s at %s stage: %d approved, %d rejected",
			form.FormNumber, result.Action, stage, len(approved), len(rejected)))
	s.auditor.Notify(ctx, "报销单审批结果", reviewNotice(form, result, len(approved), len(rejected)))

	return result, nil
}

func (s *approvalServiceImpl) allowed(actor Actor, stage workflow.Stage, inReview bool) bool {
	if !inReview {
		return actor.HasRole(RoleFinance, RoleManager)
	}
	if stage == workflow.StageManager {
		return actor.HasRole(RoleManager)
	}
	return actor.HasRole(RoleFinance)
}

// partition checks that every record still under review sits in exactly one of the two sets
func partition(records []*entity.ReimbursementRecord, req ReviewRequest) (approved, rejected []int64, err error) {
	inScope := make(map[int64]bool, len(records))
	var order []int64
	for _, r := range records {
		if r.ApprovalStatus.InReviewScope() {
			inScope[r.ID] = true
			order = append(order, r.ID)
		}
	}
	if len(order) == 0 {
		return nil, nil, newError(CodeInvalidState, "no records are awaiting review")
	}

	decision := make(map[int64]bool, len(order))
	mark := func(ids []int64, approve bool) error {
		for _, id := range ids {
			if !inScope[id] {
				return newError(CodeInvalidInput, "record %d is not under review on this form", id).
					withDetails(map[string]interface{}{"record_id": id})
			}
			if _, dup := decision[id]; dup {
				return newError(CodeInvalidInput, "record %d is listed more than once", id).
					withDetails(map[string]interface{}{"record_id": id})
			}
			decision[id] = approve
		}
		return nil
	}
	if err := mark(req.ApprovedRecordIDs, true); err != nil {
		return nil, nil, err
	}
	if err := mark(req.RejectedRecordIDs, false); err != nil {
		return nil, nil, err
	}

	var missing []int64
	for _, id := range order {
		approve, ok := decision[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case approve:
			approved = append(approved, id)
		default:
			rejected = append(rejected, id)
		}
	}
	if len(missing) > 0 {
		return nil, nil, newError(CodeInvalidInput, "every record under review must be approved or rejected").
			withDetails(map[string]interface{}{"missing_record_ids": missing})
	}
	return approved, rejected, nil
}

func (s *approvalServiceImpl) approveAll(ctx context.Context, form *entity.ReimbursementForm, stage workflow.Stage, approved []int64, actor Actor, comment string, result *ReviewResult) error {
	next, err := transition(form, stage.ApproveTrigger())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.repos.Records.SetApproval(ctx, approved, stage.ApprovedRecord(), actor.UserID, now, ""); err != nil {
		return err
	}
	if err := s.repos.Forms.UpdateStatus(ctx, form.ID, next); err != nil {
		return err
	}
	if err := s.repos.Forms.UpdateReviewCounters(ctx, form.ID, len(approved), 0); err != nil {
		return err
	}

	entry := newApprovalLog(form.ID, entity.ApprovalActionApproveAll, approved, nil, actor, comment, now)
	if err := s.repos.ApprovalLogs.Append(ctx, entry); err != nil {
		return err
	}

	result.Action = entity.ApprovalActionApproveAll
	result.Status = next
	return nil
}

func (s *approvalServiceImpl) rejectAll(ctx context.Context, form *entity.ReimbursementForm, stage workflow.Stage, rejected []int64, actor Actor, req ReviewRequest, comment string, result *ReviewResult) error {
	next, err := transition(form, stage.RejectTrigger())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.markRejected(ctx, stage, rejected, actor, req, now); err != nil {
		return err
	}
	if err := s.repos.Forms.UpdateStatus(ctx, form.ID, next); err != nil {
		return err
	}
	if err := s.repos.Forms.UpdateReviewCounters(ctx, form.ID, 0, len(rejected)); err != nil {
		return err
	}
	if err := s.repos.Forms.Lock(ctx, form.ID, lockReason(next, req.Comment), now); err != nil {
		return err
	}

	entry := newApprovalLog(form.ID, entity.ApprovalActionRejectAll, nil, rejected, actor, comment, now)
	if err := s.repos.ApprovalLogs.Append(ctx, entry); err != nil {
		return err
	}

	result.Action = entity.ApprovalActionRejectAll
	result.Status = next
	return nil
}

// split keeps the rejected records on the original form and moves the approved ones to a new child form
func (s *approvalServiceImpl) split(ctx context.Context, form *entity.ReimbursementForm, stage workflow.Stage, approved, rejected []int64, actor Actor, req ReviewRequest, comment string, result *ReviewResult) error {
	rejectedState, err := transition(form, stage.RejectTrigger())
	if err != nil {
		return err
	}
	childState, err := transition(form, stage.ApproveTrigger())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	number, err := s.numbers.Next(ctx)
	if err != nil {
		return err
	}

	child := &entity.ReimbursementForm{
		FormNumber:            number,
		UserID:                form.UserID,
		Status:                childState,
		CanCreateFromRejected: true,
		CreatedAt:             now,
	}
	if err := s.repos.Forms.Create(ctx, child); err != nil {
		return err
	}

	if err := s.repos.Records.SetApproval(ctx, approved, stage.ApprovedRecord(), actor.UserID, now, ""); err != nil {
		return err
	}
	if err := s.markRejected(ctx, stage, rejected, actor, req, now); err != nil {
		return err
	}
	if err := s.repos.Records.MoveToForm(ctx, approved, child.ID); err != nil {
		return err
	}
	if err := s.repos.Vouchers.RepointForm(ctx, approved, child.ID); err != nil {
		return err
	}

	if err := s.moveLoanLinks(ctx, form.ID, child.ID); err != nil {
		return err
	}
	if _, err := recalcTotals(ctx, s.repos, form.ID); err != nil {
		return err
	}
	if _, err := recalcTotals(ctx, s.repos, child.ID); err != nil {
		return err
	}

	if err := s.repos.Forms.UpdateStatus(ctx, form.ID, rejectedState); err != nil {
		return err
	}
	if err := s.repos.Forms.UpdateReviewCounters(ctx, form.ID, 0, len(rejected)); err != nil {
		return err
	}
	if err := s.repos.Forms.UpdateReviewCounters(ctx, child.ID, len(approved), 0); err != nil {
		return err
	}
	if err := s.repos.Forms.Lock(ctx, form.ID, lockReason(rejectedState, req.Comment), now); err != nil {
		return err
	}

	split := &entity.FormSplit{
		SourceFormID: form.ID,
		NewFormID:    child.ID,
		Level:        string(stage),
		RecordIDs:    approved,
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
	}
	if err := s.repos.Lineage.CreateSplit(ctx, split); err != nil {
		return err
	}

	entry := newApprovalLog(form.ID, entity.ApprovalActionPartialApprove, approved, rejected, actor, comment, now)
	if err := s.repos.ApprovalLogs.Append(ctx, entry); err != nil {
		return err
	}

	result.Action = entity.ApprovalActionPartialApprove
	result.Status = rejectedState
	result.ChildFormID = child.ID
	result.ChildFormNumber = child.FormNumber
	result.ChildStatus = childState
	return nil
}

// moveLoanLinks hands the original's loan links to the child when they still fit its total
func (s *approvalServiceImpl) moveLoanLinks(ctx context.Context, fromFormID, toFormID int64) error {
	links, err := s.repos.LoanLinks.GetByFormID(ctx, fromFormID)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}

	moved, err := s.repos.Records.GetByFormID(ctx, toFormID)
	if err != nil {
		return err
	}
	amounts := make([]float64, len(moved))
	for i, r := range moved {
		amounts[i] = r.Amount
	}
	offsets := make([]float64, len(links))
	for i, l := range links {
		offsets[i] = l.OffsetAmount
	}

	if money.GreaterThan(money.Sum(offsets...), money.Sum(amounts...)) {
		s.logger.Warn("Loan offsets no longer fit after split, clearing links",
			"form_id", fromFormID, "child_form_id", toFormID)
		return s.repos.LoanLinks.ReplaceForForm(ctx, fromFormID, nil)
	}
	return s.repos.LoanLinks.MoveToForm(ctx, fromFormID, toFormID)
}

// markRejected writes each rejection with its own reason
func (s *approvalServiceImpl) markRejected(ctx context.Context, stage workflow.Stage, ids []int64, actor Actor, req ReviewRequest, at time.Time) error {
	for _, id := range ids {
		reason := strings.TrimSpace(req.RecordComments[id])
		if reason == "" {
			reason = strings.TrimSpace(req.Comment)
		}
		if err := s.repos.Records.SetApproval(ctx, []int64{id}, stage.RejectedRecord(), actor.UserID, at, reason); err != nil {
			return err
		}
	}
	return nil
}

func lockReason(state workflow.State, comment string) string {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return state.Label()
	}
	return truncateRunes(state.Label()+": "+comment, maxCommentRunes)
}

// buildReviewComment joins the free text with #<id>:<comment> entries
func buildReviewComment(comment string, recordComments map[int64]string) string {
	var parts []string
	if c := strings.TrimSpace(comment); c != "" {
		parts = append(parts, c)
	}

	ids := make([]int64, 0, len(recordComments))
	for id := range recordComments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if c := strings.TrimSpace(recordComments[id]); c != "" {
			parts = append(parts, fmt.Sprintf("#%d:%s", id, c))
		}
	}
	return truncateRunes(strings.Join(parts, "; "), maxCommentRunes)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func reviewNotice(form *entity.ReimbursementForm, result *ReviewResult, approved, rejected int) string {
	msg := fmt.Sprintf("报销单 %s：%s（通过 %d 条，驳回 %d 条）", form.FormNumber, result.Status.Label(), approved, rejected)
	if result.ChildFormNumber != "" {
		msg += fmt.Sprintf("，已通过明细拆分至新报销单 %s", result.ChildFormNumber)
	}
	return msg
}

type lineageNode struct {
	formID int64
	level  string
}

// History walks splits and recreations back to the root form
func (s *approvalServiceImpl) History(ctx context.Context, formID int64, actor Actor) ([]*entity.ApprovalLog, error) {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return nil, err
	}
	if form.UserID != actor.UserID && !actor.IsReviewer() {
		return nil, newError(CodeForbidden, "form %d is not visible to user %d", formID, actor.UserID)
	}

	var (
		history []*entity.ApprovalLog
		visited = map[int64]bool{formID: true}
		queue   = []lineageNode{{formID: formID, level: entity.SourceLevelSelf}}
	)

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		logs, err := s.repos.ApprovalLogs.GetByFormID(ctx, node.formID, false)
		if err != nil {
			return nil, fmt.Errorf("get approval logs: %w", err)
		}
		for _, l := range logs {
			l.SourceFormID = node.formID
			l.SourceLevel = node.level
			history = append(history, l)
		}

		parents, err := s.repos.Lineage.Parents(ctx, node.formID)
		if err != nil {
			return nil, fmt.Errorf("get form parents: %w", err)
		}
		for _, p := range parents {
			if visited[p.FormID] {
				continue
			}
			visited[p.FormID] = true
			queue = append(queue, lineageNode{formID: p.FormID, level: p.Level})
		}
	}

	sort.SliceStable(history, func(i, j int) bool {
		if !history[i].CreatedAt.Equal(history[j].CreatedAt) {
			return history[i].CreatedAt.Before(history[j].CreatedAt)
		}
		return history[i].ID < history[j].ID
	})
	return history, nil
}
