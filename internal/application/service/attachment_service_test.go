package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
)

func TestAttachmentService_StageAndRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	att, err := env.attachments.Stage(ctx, alice, "../发票 01.PDF", []byte("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", att.FileType)
	assert.Equal(t, "发票 01.PDF", att.OriginalName)
	assert.True(t, strings.HasPrefix(att.FilePath, "temp/"+time.Now().Format("20060102")+"/"))
	assert.True(t, strings.HasSuffix(att.FilePath, ".pdf"))

	got, content, err := env.attachments.ReadTemp(ctx, alice, att.TempID)
	require.NoError(t, err)
	assert.Equal(t, att.TempID, got.TempID)
	assert.Equal(t, []byte("%PDF-1.4 body"), content)

	_, _, err = env.attachments.ReadTemp(ctx, bob, att.TempID)
	requireCode(t, err, CodeForbidden)

	_, err = env.attachments.Stage(ctx, alice, "empty.png", nil)
	requireCode(t, err, CodeInvalidInput)
	_, err = env.attachments.Stage(ctx, alice, "huge.png", make([]byte, 2<<20))
	requireCode(t, err, CodeInvalidInput)
}

func TestAttachmentService_LinkRejectsForeignUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := item(10, "a", "")
	in.TempAttachmentIDs = []string{env.stage(t, bob, "bob.pdf")}
	_, err := env.forms.Create(ctx, alice, []ItemInput{in}, SaveModeDraft)
	requireCode(t, err, CodeForbidden)

	forms, err := env.forms.List(ctx, alice, FormListFilter{})
	require.NoError(t, err)
	assert.Empty(t, forms)
}

func TestAttachmentService_CleanupTemp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	svc := env.attachments.(*attachmentServiceImpl)
	svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, err := svc.Stage(ctx, alice, "old.png", []byte("old"))
	require.NoError(t, err)
	svc.now = time.Now
	fresh, err := svc.Stage(ctx, alice, "fresh.png", []byte("fresh"))
	require.NoError(t, err)

	removed, err := env.attachments.CleanupTemp(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, env.storage.Exists(ctx, old.FilePath))
	assert.True(t, env.storage.Exists(ctx, fresh.FilePath))

	_, _, err = env.attachments.ReadTemp(ctx, alice, old.TempID)
	requireCode(t, err, CodeNotFound)
}

func TestFileChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.storage.Save(ctx, "a.txt", []byte("a")))
	require.NoError(t, env.storage.Save(ctx, "b.txt", []byte("b")))

	files := &FileChanges{}
	files.Created("a.txt")
	files.Obsolete("b.txt")
	files.Rollback(ctx, env.storage, env.logger)
	assert.False(t, env.storage.Exists(ctx, "a.txt"))
	assert.True(t, env.storage.Exists(ctx, "b.txt"))

	files.Obsolete("b.txt")
	files.Commit(ctx, env.storage, env.logger)
	assert.False(t, env.storage.Exists(ctx, "b.txt"))
}

// MockRecognizer mocks the port.InvoiceRecognizer interface
type MockRecognizer struct {
	mock.Mock
}

func (m *MockRecognizer) Recognize(ctx context.Context, content []byte, mimeType string) (*port.RecognizedInvoice, error) {
	args := m.Called(ctx, content, mimeType)
	rec, _ := args.Get(0).(*port.RecognizedInvoice)
	return rec, args.Error(1)
}

func TestOCRService_RecognizeTemp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createForm(t, bob, SaveModeSubmit, item(10, "a", "12345678"))
	tempID := env.stage(t, alice, "invoice.pdf")

	rec := new(MockRecognizer)
	rec.On("Recognize", mock.Anything, mock.Anything, "application/pdf").Return(&port.RecognizedInvoice{
		InvoiceNumber: "No.0412345678",
		InvoiceDate:   "2024-10-15",
		TotalAmount:   99.999,
		SellerName:    "某某餐饮",
		Confidence:    0.92,
	}, nil).Once()
	rec.On("Recognize", mock.Anything, mock.Anything, "application/pdf").Return(nil, errors.New("model unavailable")).Once()
	ocr := NewOCRService(rec, env.attachments, env.invoices, env.logger)

	fields, err := ocr.RecognizeTemp(ctx, alice, tempID)
	require.NoError(t, err)
	assert.Equal(t, "12345678", fields.InvoiceNumber)
	assert.Equal(t, "No.0412345678", fields.RawInvoiceNumber)
	assert.Equal(t, 100.0, fields.Amount)
	require.NotNil(t, fields.Duplicate)
	assert.Equal(t, bob.UserID, fields.Duplicate.UserID)

	_, err = ocr.RecognizeTemp(ctx, bob, tempID)
	requireCode(t, err, CodeForbidden)

	_, err = ocr.RecognizeTemp(ctx, alice, tempID)
	require.Error(t, err)
	_, isBusiness := AsError(err)
	assert.False(t, isBusiness)
	rec.AssertNumberOfCalls(t, "Recognize", 2)

	disabled := NewOCRService(nil, env.attachments, env.invoices, env.logger)
	_, err = disabled.RecognizeTemp(ctx, alice, tempID)
	requireCode(t, err, CodeInvalidState)
}

// fakeRenderer and fakeArchiver capture what the export service hands over
type fakeRenderer struct {
	sheet *port.FormSheet
}

func (f *fakeRenderer) Render(sheet *port.FormSheet) ([]byte, error) {
	f.sheet = sheet
	return []byte("xlsx"), nil
}

type fakeArchiver struct {
	entries []port.PackageEntry
}

func (f *fakeArchiver) Archive(entries []port.PackageEntry) ([]byte, error) {
	f.entries = entries
	return []byte("zip"), nil
}

func TestExportService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := item(10, "a", "")
	in.TempAttachmentIDs = []string{env.stage(t, alice, "收据.jpg")}
	res := env.createForm(t, alice, SaveModeSubmit, in, item(5, "b", ""))

	renderer := &fakeRenderer{}
	archiver := &fakeArchiver{}
	export := NewExportService(env.repos, env.approval, renderer, archiver, env.storage, env.logger)

	file, err := export.ExportExcel(ctx, res.FormID, finance)
	require.NoError(t, err)
	assert.Equal(t, res.FormNumber+".xlsx", file.Name)
	assert.Equal(t, ContentTypeXLSX, file.ContentType)
	require.NotNil(t, renderer.sheet)
	assert.Len(t, renderer.sheet.Records, 2)
	assert.Len(t, renderer.sheet.History, 1)

	pkg, err := export.ExportPackage(ctx, res.FormID, alice)
	require.NoError(t, err)
	assert.Equal(t, res.FormNumber+".zip", pkg.Name)
	assert.Equal(t, []byte("zip"), pkg.Content)
	require.Len(t, archiver.entries, 2)
	assert.Equal(t, res.FormNumber+".xlsx", archiver.entries[0].Name)
	assert.True(t, strings.HasPrefix(archiver.entries[1].Name, "vouchers/record_"+itoa(res.ReimbursementIDs[0])+"/"))
	assert.True(t, strings.HasSuffix(archiver.entries[1].Name, "_收据.jpg"))

	_, err = export.ExportExcel(ctx, res.FormID, bob)
	requireCode(t, err, CodeForbidden)
}
