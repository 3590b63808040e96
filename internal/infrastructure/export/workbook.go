package export

import (
	"fmt"
	"strings"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet and cell layout of the generated workbook
const (
	formSheet    = "报销单"
	historySheet = "审批记录"

	cellTitle      = "A1"
	cellFormNumber = "B2"
	cellApplicant  = "D2"
	cellStatus     = "F2"
	cellCreatedAt  = "H2"

	headerRow    = 4
	dataRowStart = 5
)

var itemHeaders = []string{"序号", "费用类型", "用途", "发票号码", "发票日期", "金额", "审批状态", "备注"}

var recordLabels = map[workflow.RecordStatus]string{
	workflow.RecordPending:         "待审核",
	workflow.RecordFinanceApproved: "财务已通过",
	workflow.RecordFinanceRejected: "财务已驳回",
	workflow.RecordManagerApproved: "总经理已通过",
	workflow.RecordManagerRejected: "总经理已驳回",
	workflow.RecordPaid:            "已打款",
}

var actionLabels = map[string]string{
	"submit":          "提交",
	"approve_all":     "全部通过",
	"reject_all":      "全部驳回",
	"partial_approve": "部分通过",
}

// Config configures the workbook renderer
type Config struct {
	CompanyName string
	FontFamily  string
}

// WorkbookRenderer implements port.WorkbookRenderer with excelize
type WorkbookRenderer struct {
	companyName string
	fontFamily  string
	logger      *zap.Logger
}

// NewWorkbookRenderer creates a new WorkbookRenderer
func NewWorkbookRenderer(cfg Config, logger *zap.Logger) *WorkbookRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkbookRenderer{
		companyName: cfg.CompanyName,
		fontFamily:  cfg.FontFamily,
		logger:      logger,
	}
}

// Render builds the printable form workbook
func (w *WorkbookRenderer) Render(sheet *port.FormSheet) ([]byte, error) {
	if sheet == nil || sheet.Form == nil {
		return nil, fmt.Errorf("form sheet is empty")
	}

	file := excelize.NewFile()
	defer file.Close()

	if w.fontFamily != "" {
		if err := file.SetDefaultFont(w.fontFamily); err != nil {
			w.logger.Warn("Failed to set default font", zap.String("font", w.fontFamily), zap.Error(err))
		}
	}

	if err := file.SetSheetName("Sheet1", formSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := w.fillHeader(file, sheet); err != nil {
		return nil, fmt.Errorf("failed to fill header: %w", err)
	}

	next, err := w.fillItems(file, sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to fill items: %w", err)
	}

	if err := w.fillTotals(file, sheet, next+1); err != nil {
		return nil, fmt.Errorf("failed to fill totals: %w", err)
	}

	if err := w.fillHistory(file, sheet); err != nil {
		return nil, fmt.Errorf("failed to fill history: %w", err)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Debug("Workbook rendered",
		zap.String("form_number", sheet.Form.FormNumber),
		zap.Int("records", len(sheet.Records)))
	return buf.Bytes(), nil
}

func (w *WorkbookRenderer) fillHeader(f *excelize.File, sheet *port.FormSheet) error {
	title := "费用报销单"
	if w.companyName != "" {
		title = w.companyName + " " + title
	}

	if err := f.MergeCell(formSheet, cellTitle, "H1"); err != nil {
		return err
	}
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(formSheet, cellTitle, cellTitle, titleStyle); err != nil {
		return err
	}

	form := sheet.Form
	cells := []struct {
		cell  string
		value interface{}
	}{
		{cellTitle, title},
		{"A2", "单号"},
		{cellFormNumber, form.FormNumber},
		{"C2", "申请人"},
		{cellApplicant, form.UserID},
		{"E2", "状态"},
		{cellStatus, form.StatusLabel()},
		{"G2", "创建日期"},
		{cellCreatedAt, form.CreatedAt.Format("2006-01-02")},
	}
	for _, c := range cells {
		if err := f.SetCellValue(formSheet, c.cell, c.value); err != nil {
			return err
		}
	}

	for i, h := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := f.SetCellValue(formSheet, cell, h); err != nil {
			return err
		}
	}
	headStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(formSheet, "A4", "H4", headStyle); err != nil {
		return err
	}

	if err := f.SetColWidth(formSheet, "C", "C", 30); err != nil {
		return err
	}
	return f.SetColWidth(formSheet, "D", "H", 16)
}

// fillItems writes one row per record and returns the last row used
func (w *WorkbookRenderer) fillItems(f *excelize.File, sheet *port.FormSheet) (int, error) {
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return 0, err
	}

	row := dataRowStart - 1
	for i, r := range sheet.Records {
		row = dataRowStart + i
		values := []interface{}{
			i + 1,
			r.Type,
			r.Purpose,
			r.InvoiceNumber,
			r.InvoiceDate,
			r.Amount,
			recordLabel(r.ApprovalStatus),
			joinNonEmpty(r.Remark, r.RejectReason),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(formSheet, cell, &values); err != nil {
			return 0, err
		}
		amountCell, _ := excelize.CoordinatesToCellName(6, row)
		if err := f.SetCellStyle(formSheet, amountCell, amountCell, amountStyle); err != nil {
			return 0, err
		}
	}
	return row, nil
}

func (w *WorkbookRenderer) fillTotals(f *excelize.File, sheet *port.FormSheet, row int) error {
	form := sheet.Form
	lines := [][]interface{}{
		{"报销合计", form.TotalAmount},
		{"借款抵扣", form.LoanOffsetAmount},
		{"实付金额", form.NetPaymentAmount},
		{"实付大写", numberToChinese(form.NetPaymentAmount)},
	}
	for _, link := range sheet.LoanLinks {
		lines = append(lines, []interface{}{fmt.Sprintf("抵扣借款 #%d", link.LoanID), link.OffsetAmount})
	}
	if form.PaidAt != nil {
		lines = append(lines, []interface{}{"打款时间", form.PaidAt.Format("2006-01-02 15:04")})
	}
	if form.PaymentNote != "" {
		lines = append(lines, []interface{}{"打款备注", form.PaymentNote})
	}

	for i, line := range lines {
		cell, _ := excelize.CoordinatesToCellName(5, row+i)
		if err := f.SetSheetRow(formSheet, cell, &line); err != nil {
			return err
		}
	}
	return nil
}

func (w *WorkbookRenderer) fillHistory(f *excelize.File, sheet *port.FormSheet) error {
	if _, err := f.NewSheet(historySheet); err != nil {
		return err
	}

	header := []interface{}{"时间", "单据", "来源", "操作", "审批人", "角色", "通过条目", "驳回条目", "意见"}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return err
	}

	for i, log := range sheet.History {
		values := []interface{}{
			log.CreatedAt.Format("2006-01-02 15:04:05"),
			log.SourceFormID,
			log.SourceLevel,
			actionLabel(log.Action),
			log.ApproverID,
			log.ApproverRole,
			joinIDs(log.ApprovedRecordIDs),
			joinIDs(log.RejectedRecordIDs),
			log.Comment,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(historySheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SetColWidth(historySheet, "I", "I", 60)
}

func recordLabel(s workflow.RecordStatus) string {
	if l, ok := recordLabels[s]; ok {
		return l
	}
	return string(s)
}

func actionLabel(a string) string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return a
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

func joinNonEmpty(values ...string) string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, "; ")
}
