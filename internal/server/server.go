// Package server exposes the verification flow over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kyc-orchestrator/internal/common/config"
	apperrors "kyc-orchestrator/internal/common/errors"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/models"
	"kyc-orchestrator/internal/orchestrator"
	"kyc-orchestrator/internal/provider"
)

// Orchestrator is the application surface the handlers call into.
type Orchestrator interface {
	CreateApplicant(ctx context.Context, req orchestrator.CreateApplicantRequest) (*models.Applicant, error)
	GetApplicant(ctx context.Context, applicantID string) (*models.Applicant, error)
	CheckLiveness(ctx context.Context, applicantID, fileName string, video []byte) (*provider.LivenessResult, error)
	VerifyKYC(ctx context.Context, applicantID string) (*models.Step, error)
	UploadIDDocument(ctx context.Context, applicantID, idDocType, country, fileName, mimeType string, content []byte) (*provider.DocumentResult, error)
	UploadSelfie(ctx context.Context, applicantID, country, fileName, mimeType string, content []byte) (*provider.DocumentResult, error)
	GetStatus(ctx context.Context, applicantID string) (*orchestrator.VerificationStatus, error)
	ListSteps(ctx context.Context, applicantID string) (*orchestrator.StepsSummary, error)
	ListDocuments(ctx context.Context, applicantID string) ([]models.Document, error)
	IssueSDKToken(ctx context.Context, externalUserID, email, phone string) (*provider.SDKTokenResult, error)
	SubmitForReview(ctx context.Context, applicantID string) error
	ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*orchestrator.WebhookAck, error)
}

type Server struct {
	engine      *gin.Engine
	httpServer  *http.Server
	service     Orchestrator
	errors      *apperrors.ErrorHandler
	logger      logger.Logger
	serverCfg   config.ServerConfig
	providerCfg config.ProviderConfig
	tokenTTL    int
}

func New(cfg config.ServerConfig, providerCfg config.ProviderConfig, service Orchestrator, log logger.Logger) *Server {
	s := &Server{
		service:     service,
		errors:      apperrors.NewErrorHandler(log),
		logger:      log,
		serverCfg:   cfg,
		providerCfg: providerCfg,
		tokenTTL:    providerCfg.SDKTokenTTL,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), s.requestLogger())
	if cfg.MaxUploadBytes > 0 {
		engine.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	s.registerRoutes(engine)
	s.engine = engine
	return s
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/kyc")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/applicants", s.handleCreateApplicant)
		api.GET("/applicants/:applicantId", s.handleGetApplicant)
		api.POST("/applicants/:applicantId/liveness/check", s.handleCheckLiveness)
		api.POST("/applicants/:applicantId/kyc/verify", s.handleVerifyKYC)
		api.POST("/applicants/:applicantId/documents/id", s.handleUploadIDDocument)
		api.POST("/applicants/:applicantId/documents/selfie", s.handleUploadSelfie)
		api.GET("/applicants/:applicantId/documents", s.handleListDocuments)
		api.GET("/applicants/:applicantId/status", s.handleGetStatus)
		api.GET("/applicants/:applicantId/steps", s.handleListSteps)
		api.POST("/applicants/:applicantId/sdk-token", s.handleSDKToken)
		api.POST("/applicants/:applicantId/status/pending", s.handleSubmitForReview)
		api.POST("/webhooks/verification", s.handleWebhook)
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is canceled, then drains connections
// within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.serverCfg.Host, s.serverCfg.Port),
		Handler:      s.engine,
		ReadTimeout:  time.Duration(s.serverCfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(s.serverCfg.WriteTimeout) * time.Millisecond,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", map[string]interface{}{
			"address": s.httpServer.Addr,
		})
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.serverCfg.ShutdownTimeout)*time.Millisecond)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// requestID tags every request so log lines from one request can be
// correlated. An inbound X-Request-ID is honored; otherwise one is
// minted.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("request handled", map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	environment := "Production"
	if s.providerCfg.IsSandbox() {
		environment = "Sandbox"
	}

	keyPrefix := s.providerCfg.APIKey
	if len(keyPrefix) > 10 {
		keyPrefix = keyPrefix[:10]
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"api_base_url":   s.providerCfg.GetBaseURL(),
		"api_key_prefix": keyPrefix,
		"is_sandbox":     s.providerCfg.IsSandbox(),
		"environment":    environment,
	})
}
