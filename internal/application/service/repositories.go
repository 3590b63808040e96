package service

import "github.com/garyjia/expense-reimbursement/internal/application/port"

// Repositories groups the persistence ports shared by the services
type Repositories struct {
	Forms           port.FormRepository
	Records         port.RecordRepository
	Loans           port.LoanRepository
	LoanLinks       port.LoanLinkRepository
	ApprovalLogs    port.ApprovalLogRepository
	Lineage         port.LineageRepository
	Vouchers        port.VoucherRepository
	TempAttachments port.TempAttachmentRepository
	OperationLogs   port.OperationLogRepository
	Tx              port.TransactionManager
}
