package port

import (
	"time"

	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
)

// FormSheet is everything printed on an exported reimbursement form
type FormSheet struct {
	Form        *entity.ReimbursementForm
	Records     []*entity.ReimbursementRecord
	LoanLinks   []*entity.LoanLink
	History     []*entity.ApprovalLog
	GeneratedAt time.Time
}

// WorkbookRenderer renders a form as an xlsx workbook
type WorkbookRenderer interface {
	Render(sheet *FormSheet) ([]byte, error)
}

// PackageEntry is one file inside an export archive
type PackageEntry struct {
	Name    string
	Content []byte
}

// Archiver bundles files into a single archive
type Archiver interface {
	Archive(entries []PackageEntry) ([]byte, error)
}
