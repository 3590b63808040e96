package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-reimbursement/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "repo.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.DB
}

func createForm(t *testing.T, repo port.FormRepository, number string, userID int64) *entity.ReimbursementForm {
	t.Helper()
	form := &entity.ReimbursementForm{
		FormNumber:            number,
		UserID:                userID,
		Status:                workflow.StateDraft,
		CanCreateFromRejected: true,
	}
	require.NoError(t, repo.Create(context.Background(), form))
	return form
}

func TestFormRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewFormRepository(db, zap.NewNop())
	ctx := context.Background()

	form := createForm(t, repo, "RB202410150001", 7)
	require.NotZero(t, form.ID)

	got, err := repo.GetByID(ctx, form.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "RB202410150001", got.FormNumber)
	assert.Equal(t, workflow.StateDraft, got.Status)
	assert.True(t, got.CanCreateFromRejected)
	assert.False(t, got.IsLocked)

	missing, err := repo.GetByID(ctx, 9999)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := repo.ExistsByNumber(ctx, "RB202410150001")
	require.NoError(t, err)
	assert.True(t, exists)

	max, err := repo.MaxNumberWithPrefix(ctx, "RB20241015")
	require.NoError(t, err)
	assert.Equal(t, "RB202410150001", max)

	max, err = repo.MaxNumberWithPrefix(ctx, "RB20241016")
	require.NoError(t, err)
	assert.Empty(t, max)
}

func TestFormRepository_NormalizesLegacyStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewFormRepository(db, zap.NewNop())
	ctx := context.Background()

	form := createForm(t, repo, "RB202410150002", 7)
	_, err := db.Exec(`UPDATE reimbursement_forms SET status = '已驳回' WHERE id = ?`, form.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFinanceRejected, got.Status)

	listed, err := repo.List(ctx, port.FormFilter{Status: workflow.StateFinanceRejected})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, form.ID, listed[0].ID)
}

func TestFormRepository_LockAndPay(t *testing.T) {
	db := newTestDB(t)
	repo := NewFormRepository(db, zap.NewNop())
	ctx := context.Background()

	form := createForm(t, repo, "RB202410150003", 7)
	now := time.Now().UTC()

	require.NoError(t, repo.Lock(ctx, form.ID, "财务已驳回", now))
	require.NoError(t, repo.UpdateAmounts(ctx, form.ID, port.FormAmounts{TotalAmount: 1000, LoanOffsetAmount: 300, NetPaymentAmount: 700}))
	require.NoError(t, repo.MarkPaid(ctx, form.ID, "bank transfer", now))

	got, err := repo.GetByID(ctx, form.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLocked)
	assert.Equal(t, "财务已驳回", got.LockReason)
	assert.NotNil(t, got.LockedAt)
	assert.Equal(t, workflow.StatePaid, got.Status)
	assert.Equal(t, 700.0, got.NetPaymentAmount)
	assert.NotNil(t, got.PaidAt)
}

func TestRecordRepository_InvoiceHoldersAndApproval(t *testing.T) {
	db := newTestDB(t)
	forms := NewFormRepository(db, zap.NewNop())
	records := NewRecordRepository(db, zap.NewNop())
	ctx := context.Background()

	a := createForm(t, forms, "RB202410150010", 1)
	b := createForm(t, forms, "RB202410150011", 2)

	rec := &entity.ReimbursementRecord{FormID: &a.ID, UserID: 1, Amount: 120, Purpose: "taxi", Type: "交通费", InvoiceNumber: "00012345"}
	require.NoError(t, records.Create(ctx, rec))
	require.NoError(t, records.Create(ctx, &entity.ReimbursementRecord{FormID: &b.ID, UserID: 2, Amount: 30, Purpose: "meal", Type: "餐费"}))

	holders, err := records.FindInvoiceHolders(ctx, []string{"00012345"}, 0)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, a.ID, holders[0].FormID)
	assert.Equal(t, "RB202410150010", holders[0].FormNumber)
	assert.Equal(t, int64(1), holders[0].UserID)

	holders, err = records.FindInvoiceHolders(ctx, []string{"00012345"}, a.ID)
	require.NoError(t, err)
	assert.Empty(t, holders)

	// a rejected form keeps its invoices until it has been recreated
	require.NoError(t, forms.UpdateStatus(ctx, a.ID, workflow.StateFinanceRejected))
	holders, err = records.FindInvoiceHolders(ctx, []string{"00012345"}, 0)
	require.NoError(t, err)
	assert.Len(t, holders, 1)

	require.NoError(t, forms.SetCanCreateFromRejected(ctx, a.ID, false))
	holders, err = records.FindInvoiceHolders(ctx, []string{"00012345"}, 0)
	require.NoError(t, err)
	assert.Empty(t, holders)
	require.NoError(t, forms.SetCanCreateFromRejected(ctx, a.ID, true))

	require.NoError(t, records.SetApproval(ctx, []int64{rec.ID}, workflow.RecordFinanceRejected, 9, time.Now().UTC(), "no receipt"))
	got, err := records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RecordFinanceRejected, got.ApprovalStatus)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, int64(9), *got.ApproverID)

	require.NoError(t, records.ResetApproval(ctx, a.ID))
	got, err = records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RecordPending, got.ApprovalStatus)
	assert.Nil(t, got.ApproverID)
	assert.Empty(t, got.RejectReason)

	require.NoError(t, records.MoveToForm(ctx, []int64{rec.ID}, b.ID))
	moved, err := records.GetByFormID(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, moved, 2)
}

func TestLoanRepository_DecrementClamps(t *testing.T) {
	db := newTestDB(t)
	loans := NewLoanRepository(db, zap.NewNop())
	ctx := context.Background()

	loan := &entity.Loan{UserID: 1, Amount: 500, RemainingAmount: 200, Status: entity.LoanStatusPartialRepaid}
	require.NoError(t, loans.Create(ctx, loan))

	before, after, err := loans.DecrementRemaining(ctx, loan.ID, 150.3)
	require.NoError(t, err)
	assert.Equal(t, 200.0, before)
	assert.Equal(t, 49.7, after)

	_, after, err = loans.DecrementRemaining(ctx, loan.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, after)

	outstanding, err := loans.ListOutstandingByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, outstanding)
}

func TestLoanLinkRepository_ReplaceAndMove(t *testing.T) {
	db := newTestDB(t)
	forms := NewFormRepository(db, zap.NewNop())
	loans := NewLoanRepository(db, zap.NewNop())
	links := NewLoanLinkRepository(db, zap.NewNop())
	ctx := context.Background()

	a := createForm(t, forms, "RB202410150020", 1)
	b := createForm(t, forms, "RB202410150021", 1)
	loan := &entity.Loan{UserID: 1, Amount: 500, RemainingAmount: 500, Status: entity.LoanStatusPaid}
	require.NoError(t, loans.Create(ctx, loan))

	require.NoError(t, links.ReplaceForForm(ctx, a.ID, []*entity.LoanLink{{LoanID: loan.ID, OffsetAmount: 100, OriginalRemainingAmount: 500, CreatedBy: 9}}))
	require.NoError(t, links.ReplaceForForm(ctx, a.ID, []*entity.LoanLink{{LoanID: loan.ID, OffsetAmount: 200, OriginalRemainingAmount: 500, CreatedBy: 9}}))

	got, err := links.GetByFormID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 200.0, got[0].OffsetAmount)

	require.NoError(t, links.MoveToForm(ctx, a.ID, b.ID))
	got, err = links.GetByFormID(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestApprovalLogRepository_Supersede(t *testing.T) {
	db := newTestDB(t)
	forms := NewFormRepository(db, zap.NewNop())
	logs := NewApprovalLogRepository(db, zap.NewNop())
	ctx := context.Background()

	form := createForm(t, forms, "RB202410150030", 1)
	require.NoError(t, logs.Append(ctx, &entity.ApprovalLog{
		FormID: form.ID, Action: entity.ApprovalActionRejectAll,
		RejectedRecordIDs: []int64{3, 4}, ApproverID: 9, ApproverRole: "finance",
	}))

	has, err := logs.HasDecision(ctx, form.ID)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, logs.Supersede(ctx, form.ID, time.Now().UTC()))
	require.NoError(t, logs.Append(ctx, &entity.ApprovalLog{
		FormID: form.ID, Action: entity.ApprovalActionApproveAll,
		ApprovedRecordIDs: []int64{3, 4}, ApproverID: 9, ApproverRole: "finance",
	}))

	active, err := logs.GetByFormID(ctx, form.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, []int64{3, 4}, active[0].ApprovedRecordIDs)
	assert.Empty(t, active[0].RejectedRecordIDs)

	all, err := logs.GetByFormID(ctx, form.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[0].SupersededAt)

	has, err = logs.HasDecision(ctx, form.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestLineageRepository_Parents(t *testing.T) {
	db := newTestDB(t)
	lineage := NewLineageRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, lineage.CreateSplit(ctx, &entity.FormSplit{SourceFormID: 1, NewFormID: 2, Level: "finance", RecordIDs: []int64{5}, CreatedBy: 9}))
	require.NoError(t, lineage.CreateRelation(ctx, &entity.FormRelation{RejectedFormID: 1, NewFormID: 3, RelationType: entity.RelationCreatedFromRejected, CreatedBy: 7}))

	parents, err := lineage.Parents(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []entity.Ancestor{{FormID: 1, Level: entity.SourceLevelSplitFinance}}, parents)

	parents, err = lineage.Parents(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []entity.Ancestor{{FormID: 1, Level: entity.SourceLevelCreatedFromRejected}}, parents)

	split, err := lineage.HasSplit(ctx, 1)
	require.NoError(t, err)
	assert.True(t, split)

	require.NoError(t, lineage.DeleteByFormID(ctx, 1))
	split, err = lineage.HasSplit(ctx, 1)
	require.NoError(t, err)
	assert.False(t, split)
}

func TestVoucherRepository_LinkAndDelete(t *testing.T) {
	db := newTestDB(t)
	forms := NewFormRepository(db, zap.NewNop())
	records := NewRecordRepository(db, zap.NewNop())
	vouchers := NewVoucherRepository(db, zap.NewNop())
	ctx := context.Background()

	form := createForm(t, forms, "RB202410150040", 1)
	child := createForm(t, forms, "RB202410150041", 1)
	rec := &entity.ReimbursementRecord{FormID: &form.ID, UserID: 1, Amount: 10, Purpose: "p", Type: "t"}
	require.NoError(t, records.Create(ctx, rec))

	v := &entity.Voucher{FormID: form.ID, FilePath: "vouchers/a.png", FileSize: 3, FileType: "image/png", OriginalName: "a.png", UploadedBy: 1}
	require.NoError(t, vouchers.Create(ctx, v))
	require.NoError(t, vouchers.LinkRecord(ctx, rec.ID, v.ID))

	linked, err := vouchers.GetByRecordIDs(ctx, []int64{rec.ID})
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, rec.ID, linked[0].RecordID)

	require.NoError(t, vouchers.RepointForm(ctx, []int64{rec.ID}, child.ID))
	moved, err := vouchers.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, child.ID, moved.FormID)

	removed, err := vouchers.DeleteByRecordID(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "vouchers/a.png", removed[0].FilePath)

	gone, err := vouchers.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestTempAttachmentRepository_ListOlderThan(t *testing.T) {
	db := newTestDB(t)
	temps := NewTempAttachmentRepository(db, zap.NewNop())
	ctx := context.Background()

	old := &entity.TempAttachment{TempID: "old", UserID: 1, FilePath: "temp/old.png", CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := &entity.TempAttachment{TempID: "fresh", UserID: 1, FilePath: "temp/fresh.png"}
	require.NoError(t, temps.Create(ctx, old))
	require.NoError(t, temps.Create(ctx, fresh))

	stale, err := temps.ListOlderThan(ctx, time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].TempID)

	require.NoError(t, temps.Delete(ctx, "old"))
	got, err := temps.GetByTempID(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositories_JoinTransaction(t *testing.T) {
	db := newTestDB(t)
	tm := sqlite.NewDB(db, zap.NewNop())
	forms := NewFormRepository(db, zap.NewNop())
	ctx := context.Background()

	err := tm.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, forms.Create(txCtx, &entity.ReimbursementForm{FormNumber: "RB202410150051", UserID: 1, Status: workflow.StateDraft}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	exists, err := forms.ExistsByNumber(ctx, "RB202410150051")
	require.NoError(t, err)
	assert.False(t, exists, "insert inside the rolled back transaction must not persist")
}
