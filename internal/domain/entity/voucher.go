package entity

import "time"

// Voucher is a receipt file permanently attached to a form
type Voucher struct {
	ID           int64     `json:"id"`
	FormID       int64     `json:"form_id"`
	FilePath     string    `json:"file_path"`
	FileSize     int64     `json:"file_size"`
	FileType     string    `json:"file_type"`
	OriginalName string    `json:"original_name"`
	UploadedBy   int64     `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`

	// RecordID is filled when the voucher is read through a record link
	RecordID int64 `json:"record_id,omitempty"`
}

// VoucherReuse tracks a voucher duplicated from an earlier form
type VoucherReuse struct {
	ID              int64     `json:"id"`
	SourceVoucherID int64     `json:"source_voucher_id"`
	NewVoucherID    int64     `json:"new_voucher_id"`
	SourceFormID    int64     `json:"source_form_id"`
	NewFormID       int64     `json:"new_form_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// TempAttachment is an uploaded file waiting to be linked to a record
type TempAttachment struct {
	TempID          string    `json:"temp_id"`
	UserID          int64     `json:"user_id"`
	FilePath        string    `json:"file_path"`
	FileSize        int64     `json:"file_size"`
	FileType        string    `json:"file_type"`
	OriginalName    string    `json:"original_name"`
	SourceVoucherID *int64    `json:"source_voucher_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
