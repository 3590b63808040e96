package export

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSheet() *port.FormSheet {
	return &port.FormSheet{
		Form: &entity.ReimbursementForm{
			ID:               7,
			FormNumber:       "RB20240501001",
			UserID:           42,
			Status:           workflow.StateManagerApproved,
			TotalAmount:      300,
			LoanOffsetAmount: 100,
			NetPaymentAmount: 200,
			CreatedAt:        time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local),
		},
		Records: []*entity.ReimbursementRecord{
			{ID: 1, Amount: 100, Purpose: "出差住宿", Type: "住宿", InvoiceNumber: "12345678", ApprovalStatus: workflow.RecordManagerApproved},
			{ID: 2, Amount: 200, Purpose: "机票", Type: "交通", InvoiceNumber: "87654321", ApprovalStatus: workflow.RecordManagerApproved},
		},
		LoanLinks: []*entity.LoanLink{{LoanID: 3, OffsetAmount: 100}},
		History: []*entity.ApprovalLog{
			{FormID: 7, Action: "approve_all", ApproverID: 9, ApproverRole: "finance", ApprovedRecordIDs: []int64{1, 2}, SourceFormID: 7, SourceLevel: "self"},
		},
		GeneratedAt: time.Now(),
	}
}

func TestWorkbookRenderer_Render(t *testing.T) {
	content, err := NewWorkbookRenderer(Config{CompanyName: "示例公司"}, nil).Render(sampleSheet())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	get := func(sheet, cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "示例公司 费用报销单", get(formSheet, cellTitle))
	assert.Equal(t, "RB20240501001", get(formSheet, cellFormNumber))
	assert.Equal(t, "总经理已审批", get(formSheet, cellStatus))
	assert.Equal(t, "出差住宿", get(formSheet, "C5"))
	assert.Equal(t, "机票", get(formSheet, "C6"))
	assert.Equal(t, "总经理已通过", get(formSheet, "G6"))

	// totals start one row below the last item
	assert.Equal(t, "报销合计", get(formSheet, "E7"))
	assert.Equal(t, "实付大写", get(formSheet, "E10"))
	assert.Equal(t, "贰佰元整", get(formSheet, "F10"))
	assert.Equal(t, "抵扣借款 #3", get(formSheet, "E11"))

	assert.Equal(t, "全部通过", get(historySheet, "D2"))
	assert.Equal(t, "1,2", get(historySheet, "G2"))
}

func TestWorkbookRenderer_RenderEmpty(t *testing.T) {
	_, err := NewWorkbookRenderer(Config{}, nil).Render(nil)
	assert.Error(t, err)
}

func TestZipArchiver_Archive(t *testing.T) {
	content, err := NewZipArchiver().Archive([]port.PackageEntry{
		{Name: "RB1.xlsx", Content: []byte("xlsx")},
		{Name: "vouchers/record_1/5_发票.pdf", Content: []byte("pdf")},
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "vouchers/record_1/5_发票.pdf", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))
}

func TestZipArchiver_DuplicateName(t *testing.T) {
	_, err := NewZipArchiver().Archive([]port.PackageEntry{{Name: "a"}, {Name: "a"}})
	assert.Error(t, err)
}
