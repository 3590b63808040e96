package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/storage"
	"github.com/garyjia/expense-reimbursement/pkg/database"
)

var (
	alice    = Actor{UserID: 1, Role: RoleEmployee}
	bob      = Actor{UserID: 2, Role: RoleEmployee}
	finance  = Actor{UserID: 100, Role: RoleFinance}
	manager  = Actor{UserID: 200, Role: RoleManager}
	adminAct = Actor{UserID: 300, Role: RoleAdmin}
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) WarnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warns)
}

// recordingActions captures audit entries and can be told to fail
type recordingActions struct {
	mu      sync.Mutex
	actions []string
	fail    bool
}

func (r *recordingActions) LogAction(ctx context.Context, userID int64, action, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("audit sink unavailable")
	}
	r.actions = append(r.actions, action)
	return nil
}

func (r *recordingActions) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.actions...)
}

// recordingNotifier captures notifications
type recordingNotifier struct {
	mu   sync.Mutex
	sent []port.Notification
	err  error
}

func (r *recordingNotifier) Notify(ctx context.Context, n port.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type testEnv struct {
	db          *sql.DB
	repos       Repositories
	storage     port.FileStorage
	invoices    InvoiceChecker
	attachments AttachmentService
	forms       FormService
	approval    ApprovalService
	loans       LoanService
	settlement  SettlementService
	actions     *recordingActions
	notifier    *recordingNotifier
	logger      *mockLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path:         filepath.Join(dir, "service.db"),
		MaxOpenConns: 4,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	nop := zap.NewNop()
	repos := Repositories{
		Forms:           repository.NewFormRepository(db.DB, nop),
		Records:         repository.NewRecordRepository(db.DB, nop),
		Loans:           repository.NewLoanRepository(db.DB, nop),
		LoanLinks:       repository.NewLoanLinkRepository(db.DB, nop),
		ApprovalLogs:    repository.NewApprovalLogRepository(db.DB, nop),
		Lineage:         repository.NewLineageRepository(db.DB, nop),
		Vouchers:        repository.NewVoucherRepository(db.DB, nop),
		TempAttachments: repository.NewTempAttachmentRepository(db.DB, nop),
		OperationLogs:   repository.NewOperationLogRepository(db.DB, nop),
		Tx:              sqlite.NewDB(db.DB, nop),
	}

	env := &testEnv{
		db:       db.DB,
		repos:    repos,
		storage:  storage.NewLocalFileStorage(filepath.Join(dir, "files"), nop),
		actions:  &recordingActions{},
		notifier: &recordingNotifier{},
		logger:   &mockLogger{},
	}

	auditor := NewAuditor(env.actions, env.notifier, env.logger)
	numbers := NewFormNumberGenerator(repos.Forms)

	env.invoices = NewInvoiceChecker(repos.Records, env.logger)
	env.attachments = NewAttachmentService(repos, env.storage, 1<<20, env.logger)
	env.forms = NewFormService(repos, env.invoices, numbers, env.attachments, env.storage, auditor, env.logger)
	env.approval = NewApprovalService(repos, numbers, auditor, env.logger)
	env.loans = NewLoanService(repos, auditor, env.logger)
	env.settlement = NewSettlementService(repos, env.loans, auditor, env.logger)
	return env
}

func item(amount float64, purpose, invoice string) ItemInput {
	return ItemInput{Amount: amount, Purpose: purpose, Type: "差旅费", InvoiceNumber: invoice}
}

// createForm creates a form for actor and fails the test on error
func (e *testEnv) createForm(t *testing.T, actor Actor, mode SaveMode, items ...ItemInput) *CreateResult {
	t.Helper()
	res, err := e.forms.Create(context.Background(), actor, items, mode)
	require.NoError(t, err)
	return res
}

// stage uploads a small receipt for actor
func (e *testEnv) stage(t *testing.T, actor Actor, name string) string {
	t.Helper()
	att, err := e.attachments.Stage(context.Background(), actor, name, []byte(fmt.Sprintf("%%PDF-1.4 receipt %s", name)))
	require.NoError(t, err)
	return att.TempID
}

// approveAll drives the form through one review with every in-scope record approved
func (e *testEnv) approveAll(t *testing.T, formID int64, actor Actor) *ReviewResult {
	t.Helper()
	ctx := context.Background()
	records, err := e.repos.Records.GetByFormID(ctx, formID)
	require.NoError(t, err)

	var ids []int64
	for _, r := range records {
		if r.ApprovalStatus.InReviewScope() {
			ids = append(ids, r.ID)
		}
	}
	res, err := e.approval.Review(ctx, formID, actor, ReviewRequest{ApprovedRecordIDs: ids})
	require.NoError(t, err)
	return res
}

func requireCode(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	require.Error(t, err)
	be, ok := AsError(err)
	require.True(t, ok, "expected business error %s, got %v", code, err)
	require.Equal(t, code, be.Code, be.Error())
	return be
}
