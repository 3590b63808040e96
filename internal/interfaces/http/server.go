// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxUploadSize int64
	BackupDir     string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "0.0.0.0",
		Port:          8080,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  60 * time.Second,
		MaxUploadSize: service.DefaultMaxUploadSize,
		BackupDir:     "./data/backups",
	}
}

// Services groups the application services exposed over HTTP
type Services struct {
	Forms       service.FormService
	Approval    service.ApprovalService
	Loans       service.LoanService
	Settlement  service.SettlementService
	Invoices    service.InvoiceChecker
	Attachments service.AttachmentService
	OCR         service.OCRService
	Export      service.ExportService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	backuper   port.Backuper
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, backuper port.Backuper, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadSize

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		backuper: backuper,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", requestID(c),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.backuper, s.config, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api", identityMiddleware())
	{
		forms := api.Group("/forms")
		forms.POST("", h.CreateForm)
		forms.GET("", h.ListForms)
		forms.GET("/:id", h.GetForm)
		forms.PUT("/:id", h.UpdateForm)
		forms.DELETE("/:id", h.DeleteForm)
		forms.POST("/:id/submit", h.SubmitForm)
		forms.POST("/:id/withdraw", h.WithdrawForm)
		forms.POST("/:id/recreate", h.RecreateForm)
		forms.POST("/:id/lock", h.LockForm)
		forms.POST("/:id/review", h.ReviewForm)
		forms.GET("/:id/approval-history", h.ApprovalHistory)
		forms.PUT("/:id/loan-links", h.LinkLoans)
		forms.POST("/:id/confirm-payment", h.ConfirmPayment)
		forms.GET("/:id/export", h.ExportExcel)
		forms.GET("/:id/export/package", h.ExportPackage)

		api.GET("/invoices/check", h.CheckInvoice)
		api.POST("/invoices/batch-check", h.BatchCheckInvoices)

		api.POST("/attachments", h.UploadAttachment)
		api.POST("/ocr/invoice", h.RecognizeInvoice)

		api.GET("/loans/outstanding", h.OutstandingLoans)
		api.GET("/loans/:id", h.GetLoan)
		api.POST("/loans", h.CreateLoan)

		api.POST("/admin/backup", h.Backup)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
