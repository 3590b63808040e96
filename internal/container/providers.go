package container

import (
	"fmt"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/application/service"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/export"
	infraLark "github.com/garyjia/expense-reimbursement/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/storage"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/worker"
	"github.com/garyjia/expense-reimbursement/internal/interfaces/http"
	"github.com/garyjia/expense-reimbursement/pkg/database"
	"github.com/garyjia/expense-reimbursement/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds the optional third party integrations.
type ExternalBundle struct {
	Recognizer port.InvoiceRecognizer
	Notifier   port.Notifier
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates every repository over one connection pool.
func ProvideRepositories(bundle *DatabaseBundle, logger *zap.Logger) (service.Repositories, error) {
	if bundle == nil || bundle.DB == nil {
		return service.Repositories{}, fmt.Errorf("database is required")
	}

	sqlDB := bundle.DB.DB
	return service.Repositories{
		Forms:           repository.NewFormRepository(sqlDB, logger),
		Records:         repository.NewRecordRepository(sqlDB, logger),
		Loans:           repository.NewLoanRepository(sqlDB, logger),
		LoanLinks:       repository.NewLoanLinkRepository(sqlDB, logger),
		ApprovalLogs:    repository.NewApprovalLogRepository(sqlDB, logger),
		Lineage:         repository.NewLineageRepository(sqlDB, logger),
		Vouchers:        repository.NewVoucherRepository(sqlDB, logger),
		TempAttachments: repository.NewTempAttachmentRepository(sqlDB, logger),
		OperationLogs:   repository.NewOperationLogRepository(sqlDB, logger),
		Tx:              bundle.TransactionMgr,
	}, nil
}

// ProvideStorage creates the local file storage.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil || cfg.BaseDir == "" {
		return nil, fmt.Errorf("storage base dir is required")
	}
	return storage.NewLocalFileStorage(cfg.BaseDir, logger), nil
}

// ProvideExternal creates the OCR recognizer and notifier when configured.
// Missing credentials leave the feature disabled rather than failing startup.
func ProvideExternal(openAI *OpenAIConfig, lark *LarkConfig, logger *zap.Logger) (*ExternalBundle, error) {
	bundle := &ExternalBundle{}

	if openAI != nil && openAI.APIKey != "" {
		recognizer, err := openai.NewRecognizer(openai.Config{
			APIKey:      openAI.APIKey,
			BaseURL:     openAI.BaseURL,
			Model:       openAI.Model,
			PromptsPath: openAI.PromptsPath,
		}, openai.NewPDFRasterizer(), logger.Named("ocr"))
		if err != nil {
			return nil, fmt.Errorf("failed to create invoice recognizer: %w", err)
		}
		bundle.Recognizer = recognizer
	} else {
		logger.Info("OpenAI API key not set, OCR disabled")
	}

	larkCfg := infraLark.Config{}
	if lark != nil {
		larkCfg = infraLark.Config{AppID: lark.AppID, AppSecret: lark.AppSecret, ChatID: lark.ChatID}
	}
	if larkCfg.Enabled() {
		bundle.Notifier = infraLark.NewMessenger(infraLark.NewSDKClient(larkCfg, logger), logger.Named("lark"))
	} else {
		logger.Info("Lark credentials not set, notifications disabled")
	}

	return bundle, nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos    service.Repositories
	Storage  port.FileStorage
	External *ExternalBundle
	Config   *Config
	Logger   *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (http.Services, error) {
	if deps == nil || deps.Storage == nil || deps.External == nil || deps.Config == nil {
		return http.Services{}, fmt.Errorf("service dependencies are incomplete")
	}

	log := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos

	auditor := service.NewAuditor(service.NewOperationLogSink(repos.OperationLogs), deps.External.Notifier, log)
	numbers := service.NewFormNumberGenerator(repos.Forms)
	invoices := service.NewInvoiceChecker(repos.Records, log)
	attachments := service.NewAttachmentService(repos, deps.Storage, deps.Config.Storage.MaxUploadSize, log)
	approval := service.NewApprovalService(repos, numbers, auditor, log)
	loans := service.NewLoanService(repos, auditor, log)

	renderer := export.NewWorkbookRenderer(export.Config{
		CompanyName: deps.Config.Export.CompanyName,
		FontFamily:  deps.Config.Export.FontFamily,
	}, deps.Logger.Named("export"))

	return http.Services{
		Forms:       service.NewFormService(repos, invoices, numbers, attachments, deps.Storage, auditor, log),
		Approval:    approval,
		Loans:       loans,
		Settlement:  service.NewSettlementService(repos, loans, auditor, log),
		Invoices:    invoices,
		Attachments: attachments,
		OCR:         service.NewOCRService(deps.External.Recognizer, attachments, invoices, log),
		Export:      service.NewExportService(repos, approval, renderer, export.NewZipArchiver(), deps.Storage, log),
	}, nil
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Attachments service.AttachmentService
	Backuper    port.Backuper
	Config      *Config
	Logger      *zap.Logger
}

// ProvideWorkers creates the worker manager with all background jobs registered.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Attachments == nil || deps.Config == nil {
		return nil, fmt.Errorf("worker dependencies are incomplete")
	}

	manager := worker.NewWorkerManager(deps.Logger)
	cfg := deps.Config

	manager.Register(worker.NewTempCleanupWorker(worker.TempCleanupWorkerConfig{
		Interval: cfg.Worker.TempCleanupInterval,
		MaxAge:   cfg.Worker.TempMaxAge,
	}, deps.Attachments, deps.Logger))

	if cfg.Worker.BackupInterval > 0 && deps.Backuper != nil {
		manager.Register(worker.NewBackupWorker(worker.BackupWorkerConfig{
			Interval: cfg.Worker.BackupInterval,
			Dir:      cfg.Storage.BackupDir,
			Keep:     cfg.Worker.BackupKeep,
		}, deps.Backuper, deps.Logger))
	}

	return manager, nil
}

// ProvideServer creates the HTTP server.
func ProvideServer(cfg *Config, services http.Services, backuper port.Backuper, logger *zap.Logger) *http.Server {
	return http.NewServer(http.ServerConfig{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		MaxUploadSize: cfg.Storage.MaxUploadSize,
		BackupDir:     cfg.Storage.BackupDir,
	}, services, backuper, utils.NewKVLogger(logger.Named("http")))
}
