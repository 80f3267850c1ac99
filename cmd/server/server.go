package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lperezmo/sms-helper/internal/config"
	"github.com/lperezmo/sms-helper/internal/db"
	"github.com/lperezmo/sms-helper/internal/handlers"
	"github.com/lperezmo/sms-helper/internal/queue"
	"github.com/lperezmo/sms-helper/internal/services"
	"github.com/lperezmo/sms-helper/internal/twilio"
	"github.com/lperezmo/sms-helper/pkg/logger"
	"github.com/lperezmo/sms-helper/router"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// shutdownTimeout bounds both the HTTP drain and the wait for async work
const shutdownTimeout = 5 * time.Second

// Server bundles the HTTP server with the resources it owns
type Server struct {
	HTTP      *http.Server
	assistant *services.AssistantService
	database  *db.Database
	publisher *queue.Publisher
}

// SetupServer wires every collaborator and returns a configured server
func SetupServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	if cfg.Server.Port <= 0 {
		return nil, errors.New("invalid server port")
	}

	database, err := db.NewDatabase(cfg.Database.DSN, cfg.Database.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s := &Server{database: database}
	turns := services.NewTurnService(database)

	deps, err := s.assistantDeps(cfg, turns)
	if err != nil {
		s.Close()
		return nil, err
	}

	assistant, err := services.NewAssistantService(deps, services.AssistantOptions{
		Mode:         cfg.Assistant.Mode,
		PIN:          cfg.Security.PIN,
		WelcomeText:  cfg.Assistant.WelcomeText,
		BindSender:   cfg.Assistant.BindSenderNumber,
		AsyncTimeout: cfg.Assistant.AsyncTimeout,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}
	s.assistant = assistant

	admin := services.NewAdminService(services.AdminCredentials{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		TOTPSecret:   cfg.Admin.TOTPSecret,
	})

	h := router.Handlers{
		SMS:   handlers.NewSMSHandler(assistant),
		Turns: handlers.NewTurnHandler(turns),
		Auth:  handlers.NewAuthHandler(cfg, admin),
	}
	if cfg.Twilio.ValidateSignature {
		h.Signature = twilio.NewSignatureValidator(cfg.Twilio.AuthToken)
	}

	r, err := router.NewRouter(cfg, h, version)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	// Create server with security timeouts
	s.HTTP = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// sync mode runs the model, the time service and the scheduler inline
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     zap.NewStdLog(logger.L().Named("http")),
	}

	return s, nil
}

func (s *Server) assistantDeps(cfg *config.Config, turns *services.TurnService) (services.AssistantDeps, error) {
	tw := twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.HistoryLimit)

	aiConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		aiConfig.BaseURL = cfg.OpenAI.BaseURL
	}
	ai := openai.NewClientWithConfig(aiConfig)

	deps := services.AssistantDeps{
		Auth: services.NewAuthGate(tw),
		Router: services.NewIntentRouter(ai, services.RouterOptions{
			Model:        cfg.OpenAI.Model,
			ResetKeyword: cfg.Assistant.ResetKeyword,
			HelpText:     cfg.Assistant.WelcomeText,
			BindSender:   cfg.Assistant.BindSenderNumber,
		}),
		Notifier: tw,
		Recorder: turns,
	}

	switch cfg.Assistant.Mode {
	case config.ModeRelay:
		publisher, err := queue.New(cfg.Queue.URL, cfg.Queue.Name)
		if err != nil {
			return deps, fmt.Errorf("failed to connect relay queue: %w", err)
		}
		s.publisher = publisher
		deps.Inbox = publisher
	default:
		clock := services.NewTimeOracle(cfg.TimeService.URL, cfg.TimeService.Timeout)
		deps.Extractor = services.NewReminderExtractor(ai, clock, services.ExtractorOptions{
			Model:         cfg.OpenAI.Model,
			DefaultNumber: cfg.Scheduler.DefaultNumber,
			WorkNumber:    cfg.Scheduler.WorkNumber,
		})
		deps.Dispatcher = services.NewSchedulerDispatcher(cfg.Scheduler.Endpoint, cfg.Scheduler.Timeout)
	}

	return deps, nil
}

// Close waits for in-flight async scheduling and releases owned resources
func (s *Server) Close() error {
	if s.assistant != nil {
		done := make(chan struct{})
		go func() {
			s.assistant.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			logger.Warn("Gave up waiting for background scheduling")
		}
	}

	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.database != nil {
		errs = append(errs, s.database.Close())
	}
	return errors.Join(errs...)
}

// StartServerWithContext runs the server until ctx is cancelled, then shuts down
func StartServerWithContext(ctx context.Context, s *Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", s.HTTP.Addr))
		if err := s.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := s.HTTP.Shutdown(ctxShutdown); err != nil {
		s.Close()
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return s.Close()
}
