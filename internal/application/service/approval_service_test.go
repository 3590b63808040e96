package service

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
)

func TestApprovalService_FullApprovalChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.createForm(t, alice, SaveModeSubmit, item(100, "a", ""), item(200, "b", ""))

	_, err := env.approval.Review(ctx, res.FormID, manager, ReviewRequest{ApprovedRecordIDs: res.ReimbursementIDs})
	requireCode(t, err, CodeForbidden)
	_, err = env.approval.Review(ctx, res.FormID, alice, ReviewRequest{ApprovedRecordIDs: res.ReimbursementIDs})
	requireCode(t, err, CodeForbidden)

	result := env.approveAll(t, res.FormID, finance)
	assert.Equal(t, entity.ApprovalActionApproveAll, result.Action)
	assert.Equal(t, workflow.StateFinanceApproved, result.Status)

	_, err = env.approval.Review(ctx, res.FormID, finance, ReviewRequest{ApprovedRecordIDs: res.ReimbursementIDs})
	requireCode(t, err, CodeForbidden)

	result = env.approveAll(t, res.FormID, manager)
	assert.Equal(t, workflow.StateManagerApproved, result.Status)

	form, err := env.repos.Forms.GetByID(ctx, res.FormID)
	require.NoError(t, err)
	assert.Equal(t, 2, form.ApprovedRecordCount)
	assert.Zero(t, form.RejectedRecordCount)

	records, err := env.repos.Records.GetByFormID(ctx, res.FormID)
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, workflow.RecordManagerApproved, r.ApprovalStatus)
		require.NotNil(t, r.ApproverID)
		assert.Equal(t, manager.UserID, *r.ApproverID)
	}

	// nothing left to review
	_, err = env.approval.Review(ctx, res.FormID, manager, ReviewRequest{ApprovedRecordIDs: res.ReimbursementIDs})
	requireCode(t, err, CodeInvalidState)

	history, err := env.approval.History(ctx, res.FormID, alice)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entity.ApprovalActionSubmit, history[0].Action)
	assert.Equal(t, "finance", history[1].ApproverRole)
	assert.Equal(t, "manager", history[2].ApproverRole)
	assert.Equal(t, entity.SourceLevelSelf, history[2].SourceLevel)

	assert.Equal(t, 2, env.notifier.Count())
}

func TestApprovalService_PartialApprovalSplits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.createForm(t, alice, SaveModeDraft,
		item(100, "flight", ""),
		item(150, "hotel", ""),
		item(200, "gift", ""),
	)
	assert.Equal(t, 450.0, res.TotalAmount)
	_, err := env.forms.Submit(ctx, res.FormID, alice)
	require.NoError(t, err)

	ids := res.ReimbursementIDs
	result, err := env.approval.Review(ctx, res.FormID, finance, ReviewRequest{
		ApprovedRecordIDs: []int64{ids[0], ids[1]},
		RejectedRecordIDs: []int64{ids[2]},
		Comment:           "gifts are not reimbursable",
		RecordComments:    map[int64]string{ids[2]: "personal gift"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalActionPartialApprove, result.Action)
	assert.Equal(t, workflow.StateFinanceRejected, result.Status)
	assert.Equal(t, workflow.StateFinanceApproved, result.ChildStatus)
	require.NotZero(t, result.ChildFormID)

	original, err := env.forms.Get(ctx, res.FormID, alice)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFinanceRejected, original.Form.Status)
	assert.True(t, original.Form.IsLocked)
	assert.Equal(t, 200.0, original.Form.TotalAmount)
	assert.Equal(t, 1, original.Form.RejectedRecordCount)
	require.Len(t, original.Records, 1)
	assert.Equal(t, ids[2], original.Records[0].ID)
	assert.Equal(t, workflow.RecordFinanceRejected, original.Records[0].ApprovalStatus)
	assert.Equal(t, "personal gift", original.Records[0].RejectReason)

	child, err := env.forms.Get(ctx, result.ChildFormID, alice)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFinanceApproved, child.Form.Status)
	assert.Equal(t, result.ChildFormNumber, child.Form.FormNumber)
	assert.Equal(t, 250.0, child.Form.TotalAmount)
	assert.Equal(t, 2, child.Form.ApprovedRecordCount)
	assert.False(t, child.Form.IsLocked)
	require.Len(t, child.Records, 2)

	// no record lost or duplicated
	seen := map[int64]bool{}
	for _, r := range append(original.Records, child.Records...) {
		assert.False(t, seen[r.ID])
		seen[r.ID] = true
	}
	assert.Len(t, seen, 3)

	// the child continues to the manager and inherits the ledger
	history, err := env.approval.History(ctx, result.ChildFormID, alice)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.ApprovalActionSubmit, history[0].Action)
	assert.Equal(t, res.FormID, history[1].SourceFormID)
	assert.Equal(t, entity.SourceLevelSplitFinance, history[1].SourceLevel)
	assert.Equal(t, []int64{ids[0], ids[1]}, history[1].ApprovedRecordIDs)
	assert.Equal(t, []int64{ids[2]}, history[1].RejectedRecordIDs)
	assert.Equal(t, "gifts are not reimbursable; #"+itoa(ids[2])+":personal gift", history[1].Comment)

	final := env.approveAll(t, result.ChildFormID, manager)
	assert.Equal(t, workflow.StateManagerApproved, final.Status)
}

func TestApprovalService_ManagerSplitMovesLoanLinks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	loan, err := env.loans.Create(ctx, finance, LoanInput{UserID: alice.UserID, Amount: 100})
	require.NoError(t, err)

	res := env.createForm(t, alice, SaveModeSubmit, item(300, "a", ""), item(50, "b", ""))
	env.approveAll(t, res.FormID, finance)

	_, err = env.settlement.LinkLoans(ctx, res.FormID, []LoanLinkInput{{LoanID: loan.ID, OffsetAmount: 100}}, finance)
	require.NoError(t, err)

	result, err := env.approval.Review(ctx, res.FormID, manager, ReviewRequest{
		ApprovedRecordIDs: []int64{res.ReimbursementIDs[0]},
		RejectedRecordIDs: []int64{res.ReimbursementIDs[1]},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateManagerRejected, result.Status)
	assert.Equal(t, workflow.StateManagerApproved, result.ChildStatus)

	child, err := env.repos.Forms.GetByID(ctx, result.ChildFormID)
	require.NoError(t, err)
	assert.Equal(t, 300.0, child.TotalAmount)
	assert.Equal(t, 100.0, child.LoanOffsetAmount)
	assert.Equal(t, 200.0, child.NetPaymentAmount)

	original, err := env.repos.Forms.GetByID(ctx, res.FormID)
	require.NoError(t, err)
	assert.Zero(t, original.LoanOffsetAmount)
	assert.Equal(t, 50.0, original.NetPaymentAmount)

	history, err := env.approval.History(ctx, result.ChildFormID, alice)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entity.SourceLevelSplitManager, history[2].SourceLevel)
}

func TestApprovalService_PartitionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.createForm(t, alice, SaveModeSubmit, item(10, "a", ""), item(20, "b", ""))
	other := env.createForm(t, bob, SaveModeSubmit, item(5, "c", ""))
	ids := res.ReimbursementIDs

	tests := []struct {
		name string
		req  ReviewRequest
	}{
		{"missing record", ReviewRequest{ApprovedRecordIDs: []int64{ids[0]}}},
		{"listed twice", ReviewRequest{ApprovedRecordIDs: ids, RejectedRecordIDs: []int64{ids[0]}}},
		{"foreign record", ReviewRequest{ApprovedRecordIDs: append([]int64{other.ReimbursementIDs[0]}, ids...)}},
		{"empty", ReviewRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.approval.Review(ctx, res.FormID, finance, tt.req)
			requireCode(t, err, CodeInvalidInput)
		})
	}

	_, err := env.approval.Review(ctx, res.FormID, finance, ReviewRequest{ApprovedRecordIDs: []int64{ids[0]}})
	be := requireCode(t, err, CodeInvalidInput)
	assert.Equal(t, map[string]interface{}{"missing_record_ids": []int64{ids[1]}}, be.Details)

	form, err := env.repos.Forms.GetByID(ctx, res.FormID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSubmitted, form.Status)

	_, err = env.approval.Review(ctx, 999, finance, ReviewRequest{})
	requireCode(t, err, CodeNotFound)
}

func TestApprovalService_ResubmitArchivesLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.createForm(t, alice, SaveModeSubmit, item(10, "a", ""))
	_, err := env.approval.Review(ctx, res.FormID, finance, ReviewRequest{RejectedRecordIDs: res.ReimbursementIDs})
	require.NoError(t, err)

	// legacy rows can be rejected without the lock flag
	_, err = env.db.Exec(`UPDATE reimbursement_forms SET is_locked = 0 WHERE id = ?`, res.FormID)
	require.NoError(t, err)

	id := res.ReimbursementIDs[0]
	in := item(12, "a", "")
	in.ID = &id
	form, err := env.forms.Update(ctx, res.FormID, alice, []ItemInput{in}, SaveModeSubmit)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSubmitted, form.Status)
	assert.Zero(t, form.RejectedRecordCount)

	record, err := env.repos.Records.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, workflow.RecordPending, record.ApprovalStatus)
	assert.Nil(t, record.ApproverID)
	assert.Empty(t, record.RejectReason)

	active, err := env.repos.ApprovalLogs.GetByFormID(ctx, res.FormID, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, entity.ApprovalActionSubmit, active[0].Action)

	all, err := env.repos.ApprovalLogs.GetByFormID(ctx, res.FormID, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.NotNil(t, all[0].SupersededAt)
	assert.NotNil(t, all[1].SupersededAt)
	assert.Nil(t, all[2].SupersededAt)
}

func TestBuildReviewComment(t *testing.T) {
	assert.Equal(t, "", buildReviewComment("  ", nil))
	assert.Equal(t, "ok; #2:b; #10:a", buildReviewComment(" ok ", map[int64]string{10: "a", 2: "b", 3: " "}))
	assert.Len(t, []rune(buildReviewComment(strings.Repeat("长", 1500), nil)), maxCommentRunes)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
