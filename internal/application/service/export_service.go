package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/pkg/utils"
)

// Export content types
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeZIP  = "application/zip"
)

// ExportFile is a generated download
type ExportFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// ExportService renders forms for printing and archiving
type ExportService interface {
	ExportExcel(ctx context.Context, formID int64, actor Actor) (*ExportFile, error)
	ExportPackage(ctx context.Context, formID int64, actor Actor) (*ExportFile, error)
}

type exportServiceImpl struct {
	repos    Repositories
	approval ApprovalService
	renderer port.WorkbookRenderer
	archiver port.Archiver
	storage  port.FileStorage
	logger   Logger
}

// NewExportService creates a new ExportService
func NewExportService(
	repos Repositories,
	approval ApprovalService,
	renderer port.WorkbookRenderer,
	archiver port.Archiver,
	storage port.FileStorage,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		repos:    repos,
		approval: approval,
		renderer: renderer,
		archiver: archiver,
		storage:  storage,
		logger:   logger,
	}
}

// ExportExcel renders the form workbook
func (s *exportServiceImpl) ExportExcel(ctx context.Context, formID int64, actor Actor) (*ExportFile, error) {
	sheet, err := s.buildSheet(ctx, formID, actor)
	if err != nil {
		return nil, err
	}

	content, err := s.renderer.Render(sheet.FormSheet)
	if err != nil {
		s.logger.Error("Failed to render workbook", "error", err, "form_id", formID)
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	return &ExportFile{
		Name:        sheet.Form.FormNumber + ".xlsx",
		ContentType: ContentTypeXLSX,
		Content:     content,
	}, nil
}

// ExportPackage bundles the workbook with every voucher file of the form
func (s *exportServiceImpl) ExportPackage(ctx context.Context, formID int64, actor Actor) (*ExportFile, error) {
	sheet, err := s.buildSheet(ctx, formID, actor)
	if err != nil {
		return nil, err
	}

	workbook, err := s.renderer.Render(sheet.FormSheet)
	if err != nil {
		s.logger.Error("Failed to render workbook", "error", err, "form_id", formID)
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	entries := []port.PackageEntry{{Name: sheet.Form.FormNumber + ".xlsx", Content: workbook}}
	for _, record := range sheet.Records {
		for _, v := range sheet.detail.Vouchers[record.ID] {
			content, err := s.storage.Read(ctx, v.FilePath)
			if err != nil {
				s.logger.Warn("Voucher file missing from package", "error", err, "voucher_id", v.ID, "path", v.FilePath)
				continue
			}
			name := utils.SanitizeFileName(v.OriginalName)
			if name == "" {
				name = defaultVoucherName
			}
			entries = append(entries, port.PackageEntry{
				Name:    fmt.Sprintf("vouchers/record_%d/%d_%s", record.ID, v.ID, name),
				Content: content,
			})
		}
	}

	archive, err := s.archiver.Archive(entries)
	if err != nil {
		s.logger.Error("Failed to build package", "error", err, "form_id", formID)
		return nil, fmt.Errorf("build package: %w", err)
	}

	s.logger.Info("Form package exported", "form_id", formID, "files", len(entries))
	return &ExportFile{
		Name:        sheet.Form.FormNumber + ".zip",
		ContentType: ContentTypeZIP,
		Content:     archive,
	}, nil
}

type exportSheet struct {
	*port.FormSheet
	detail *FormDetail
}

func (s *exportServiceImpl) buildSheet(ctx context.Context, formID int64, actor Actor) (*exportSheet, error) {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return nil, err
	}
	if form.UserID != actor.UserID && !actor.IsReviewer() {
		return nil, newError(CodeForbidden, "form %d is not visible to user %d", formID, actor.UserID)
	}

	detail, err := loadDetail(ctx, s.repos, form)
	if err != nil {
		return nil, err
	}
	history, err := s.approval.History(ctx, formID, actor)
	if err != nil {
		return nil, err
	}

	return &exportSheet{
		FormSheet: &port.FormSheet{
			Form:        form,
			Records:     detail.Records,
			LoanLinks:   detail.LoanLinks,
			History:     history,
			GeneratedAt: time.Now(),
		},
		detail: detail,
	}, nil
}
