package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/pkg/utils"
)

const (
	tempDir            = "temp"
	voucherDir         = "vouchers"
	defaultVoucherName = "voucher"
	cleanupBatchSize   = 200

	// DefaultMaxUploadSize caps a single staged upload
	DefaultMaxUploadSize = 20 << 20
)

// AttachmentService moves receipt files between temp staging and permanent voucher storage
type AttachmentService interface {
	Stage(ctx context.Context, actor Actor, originalName string, content []byte) (*entity.TempAttachment, error)

	// LinkTemp turns a staged upload into a voucher of the record. It must run
	// inside the form transaction; file effects are collected in files.
	LinkTemp(ctx context.Context, formID, recordID int64, tempID string, actor Actor, files *FileChanges) (*entity.Voucher, error)

	// DuplicateToTemp copies an existing voucher into staging on behalf of ownerID
	DuplicateToTemp(ctx context.Context, voucher *entity.Voucher, ownerID int64, files *FileChanges) (*entity.TempAttachment, error)

	ReadTemp(ctx context.Context, actor Actor, tempID string) (*entity.TempAttachment, []byte, error)
	CleanupTemp(ctx context.Context, maxAge time.Duration) (int, error)
}

type attachmentServiceImpl struct {
	repos         Repositories
	storage       port.FileStorage
	maxUploadSize int64
	now           func() time.Time
	logger        Logger
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(repos Repositories, storage port.FileStorage, maxUploadSize int64, logger Logger) AttachmentService {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &attachmentServiceImpl{
		repos:         repos,
		storage:       storage,
		maxUploadSize: maxUploadSize,
		now:           time.Now,
		logger:        logger,
	}
}

// Stage stores an upload under temp/{YYYYMMDD}/{uuid}{ext}
func (s *attachmentServiceImpl) Stage(ctx context.Context, actor Actor, originalName string, content []byte) (*entity.TempAttachment, error) {
	if len(content) == 0 {
		return nil, newError(CodeInvalidInput, "uploaded file is empty")
	}
	if int64(len(content)) > s.maxUploadSize {
		return nil, newError(CodeInvalidInput, "uploaded file exceeds %d bytes", s.maxUploadSize)
	}

	now := s.now()
	tempID := uuid.NewString()
	path := fmt.Sprintf("%s/%s/%s%s", tempDir, now.Format("20060102"), tempID, extension(originalName))

	if err := s.storage.Save(ctx, path, content); err != nil {
		s.logger.Error("Failed to stage upload", "error", err, "user_id", actor.UserID)
		return nil, fmt.Errorf("save temp file: %w", err)
	}

	att := &entity.TempAttachment{
		TempID:       tempID,
		UserID:       actor.UserID,
		FilePath:     path,
		FileSize:     int64(len(content)),
		FileType:     mimetype.Detect(content).String(),
		OriginalName: displayName(originalName),
		CreatedAt:    now.UTC(),
	}
	if err := s.repos.TempAttachments.Create(ctx, att); err != nil {
		_ = s.storage.Delete(ctx, path)
		return nil, fmt.Errorf("create temp attachment: %w", err)
	}

	s.logger.Info("Upload staged", "temp_id", tempID, "user_id", actor.UserID, "size", att.FileSize)
	return att, nil
}

// LinkTemp copies the staged file to its permanent path and links it to the record
func (s *attachmentServiceImpl) LinkTemp(ctx context.Context, formID, recordID int64, tempID string, actor Actor, files *FileChanges) (*entity.Voucher, error) {
	temp, err := s.repos.TempAttachments.GetByTempID(ctx, tempID)
	if err != nil {
		return nil, fmt.Errorf("get temp attachment: %w", err)
	}
	if temp == nil {
		return nil, newError(CodeInvalidItem, "attachment %s not found or expired", tempID)
	}
	if temp.UserID != actor.UserID {
		return nil, newError(CodeForbidden, "attachment %s belongs to another user", tempID)
	}

	dst := s.voucherPath(formID, temp.OriginalName)
	size, err := s.storage.Copy(ctx, temp.FilePath, dst)
	if err != nil {
		return nil, fmt.Errorf("copy voucher file: %w", err)
	}
	files.Created(dst)

	voucher := &entity.Voucher{
		FormID:       formID,
		FilePath:     dst,
		FileSize:     size,
		FileType:     temp.FileType,
		OriginalName: temp.OriginalName,
		UploadedBy:   actor.UserID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repos.Vouchers.Create(ctx, voucher); err != nil {
		return nil, fmt.Errorf("create voucher: %w", err)
	}
	if err := s.repos.Vouchers.LinkRecord(ctx, recordID, voucher.ID); err != nil {
		return nil, fmt.Errorf("link voucher: %w", err)
	}
	voucher.RecordID = recordID

	if err := s.repos.TempAttachments.Delete(ctx, tempID); err != nil {
		return nil, fmt.Errorf("delete temp attachment: %w", err)
	}
	files.Obsolete(temp.FilePath)

	if temp.SourceVoucherID != nil {
		if err := s.recordReuse(ctx, *temp.SourceVoucherID, voucher); err != nil {
			return nil, err
		}
	}

	return voucher, nil
}

func (s *attachmentServiceImpl) recordReuse(ctx context.Context, sourceVoucherID int64, voucher *entity.Voucher) error {
	source, err := s.repos.Vouchers.GetByID(ctx, sourceVoucherID)
	if err != nil {
		return fmt.Errorf("get source voucher: %w", err)
	}
	if source == nil {
		s.logger.Warn("Source voucher disappeared before reuse", "voucher_id", sourceVoucherID)
		return nil
	}

	reuse := &entity.VoucherReuse{
		SourceVoucherID: source.ID,
		NewVoucherID:    voucher.ID,
		SourceFormID:    source.FormID,
		NewFormID:       voucher.FormID,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repos.Lineage.CreateVoucherReuse(ctx, reuse); err != nil {
		return fmt.Errorf("record voucher reuse: %w", err)
	}
	return nil
}

// DuplicateToTemp physically copies a voucher so it can be linked again as a fresh file
func (s *attachmentServiceImpl) DuplicateToTemp(ctx context.Context, voucher *entity.Voucher, ownerID int64, files *FileChanges) (*entity.TempAttachment, error) {
	now := s.now()
	tempID := uuid.NewString()
	dst := fmt.Sprintf("%s/%s/%s%s", tempDir, now.Format("20060102"), tempID, extension(voucher.OriginalName))

	size, err := s.storage.Copy(ctx, voucher.FilePath, dst)
	if err != nil {
		return nil, fmt.Errorf("duplicate voucher %d: %w", voucher.ID, err)
	}
	files.Created(dst)

	sourceID := voucher.ID
	att := &entity.TempAttachment{
		TempID:          tempID,
		UserID:          ownerID,
		FilePath:        dst,
		FileSize:        size,
		FileType:        voucher.FileType,
		OriginalName:    voucher.OriginalName,
		SourceVoucherID: &sourceID,
		CreatedAt:       now.UTC(),
	}
	if err := s.repos.TempAttachments.Create(ctx, att); err != nil {
		return nil, fmt.Errorf("create temp attachment: %w", err)
	}
	return att, nil
}

// ReadTemp returns a staged upload owned by the actor together with its content
func (s *attachmentServiceImpl) ReadTemp(ctx context.Context, actor Actor, tempID string) (*entity.TempAttachment, []byte, error) {
	temp, err := s.repos.TempAttachments.GetByTempID(ctx, tempID)
	if err != nil {
		return nil, nil, fmt.Errorf("get temp attachment: %w", err)
	}
	if temp == nil {
		return nil, nil, newError(CodeNotFound, "attachment %s not found", tempID)
	}
	if temp.UserID != actor.UserID {
		return nil, nil, newError(CodeForbidden, "attachment %s belongs to another user", tempID)
	}

	content, err := s.storage.Read(ctx, temp.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read temp file: %w", err)
	}
	return temp, content, nil
}

// CleanupTemp drops staged uploads older than maxAge and returns how many went
func (s *attachmentServiceImpl) CleanupTemp(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-maxAge)

	stale, err := s.repos.TempAttachments.ListOlderThan(ctx, cutoff, cleanupBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale attachments: %w", err)
	}

	removed := 0
	for _, att := range stale {
		if err := s.repos.TempAttachments.Delete(ctx, att.TempID); err != nil {
			s.logger.Error("Failed to delete stale attachment", "error", err, "temp_id", att.TempID)
			continue
		}
		if err := s.storage.Delete(ctx, att.FilePath); err != nil {
			s.logger.Warn("Failed to delete stale attachment file", "error", err, "path", att.FilePath)
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Stale attachments removed", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// voucherPath builds vouchers/{year}/{month}/form_{id}/{unixnano}_{rand8}_{base}{ext}
func (s *attachmentServiceImpl) voucherPath(formID int64, originalName string) string {
	now := s.now()
	ext := extension(originalName)
	base := utils.SanitizeFileName(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	if base == "" {
		base = defaultVoucherName
	}
	rand8 := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	return fmt.Sprintf("%s/%04d/%02d/form_%d/%d_%s_%s%s",
		voucherDir, now.Year(), int(now.Month()), formID, now.UnixNano(), rand8, base, ext)
}

// extension returns the sanitized lower-case extension of name, dot included
func extension(name string) string {
	ext := strings.ToLower(utils.SanitizeFileName(filepath.Ext(name)))
	if ext == "" {
		return ""
	}
	return "." + ext
}

func displayName(name string) string {
	name = utils.SanitizeString(strings.TrimSpace(filepath.Base(name)))
	if name == "" || name == "." {
		return defaultVoucherName
	}
	return name
}

// FileChanges collects file effects of a transaction: files it created and
// files that become garbage once it commits.
type FileChanges struct {
	created  []string
	obsolete []string
}

// Created registers a file written during the transaction
func (c *FileChanges) Created(path string) {
	c.created = append(c.created, path)
}

// Obsolete registers a file to remove after commit
func (c *FileChanges) Obsolete(path string) {
	c.obsolete = append(c.obsolete, path)
}

// Commit deletes the obsolete files
func (c *FileChanges) Commit(ctx context.Context, storage port.FileStorage, logger Logger) {
	removeFiles(ctx, storage, logger, c.obsolete)
	c.created, c.obsolete = nil, nil
}

// Rollback deletes the files created by the failed transaction
func (c *FileChanges) Rollback(ctx context.Context, storage port.FileStorage, logger Logger) {
	removeFiles(ctx, storage, logger, c.created)
	c.created, c.obsolete = nil, nil
}

func removeFiles(ctx context.Context, storage port.FileStorage, logger Logger, paths []string) {
	for _, p := range paths {
		if err := storage.Delete(ctx, p); err != nil {
			logger.Warn("Failed to remove file", "error", err, "path", p)
		}
	}
}
