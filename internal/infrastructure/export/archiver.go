package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
)

// ZipArchiver implements port.Archiver producing zip files
type ZipArchiver struct{}

// NewZipArchiver creates a new ZipArchiver
func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{}
}

// Archive writes every entry into one zip; duplicate names are rejected
func (a *ZipArchiver) Archive(entries []port.PackageEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]bool, len(entries))
	now := time.Now()
	for _, e := range entries {
		if seen[e.Name] {
			zw.Close()
			return nil, fmt.Errorf("duplicate archive entry %q", e.Name)
		}
		seen[e.Name] = true

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: now,
			Flags:    0x800, // names are UTF-8
		})
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to add %s: %w", e.Name, err)
		}
		if _, err := w.Write(e.Content); err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to write %s: %w", e.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}
