package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/lperezmo/sms-helper/internal/config"
	"github.com/lperezmo/sms-helper/internal/handlers"
	"github.com/lperezmo/sms-helper/pkg/middleware"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// maxRequestBytes bounds webhook and admin request bodies
const maxRequestBytes = 1 << 20

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	SMS   *handlers.SMSHandler
	Turns *handlers.TurnHandler
	Auth  *handlers.AuthHandler
	// Signature is required when twilio.validate_signature is enabled
	Signature middleware.SignatureValidator
}

// Router owns the gin engine serving the webhook and the admin API
type Router struct {
	engine  *gin.Engine
	version string
}

// NewRouter builds the engine and registers every route
func NewRouter(cfg *config.Config, h Handlers, version string) (*Router, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if h.SMS == nil || h.Turns == nil || h.Auth == nil {
		return nil, errors.New("sms, turn and auth handlers are required")
	}
	if cfg.Twilio.ValidateSignature && h.Signature == nil {
		return nil, errors.New("signature validation is enabled but no validator was given")
	}

	r := &Router{engine: gin.New(), version: version}

	r.engine.Use(gin.Recovery())
	if sentry.CurrentHub().Client() != nil {
		r.engine.Use(sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second}))
	}
	r.engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.AuditLogMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.RequestSizeLimitMiddleware(maxRequestBytes),
	)
	if cfg.Server.ForceHTTPS {
		r.engine.Use(middleware.HTTPSRedirectMiddleware())
	}

	r.engine.GET("/health", r.handleHealth)
	r.engine.NoRoute(r.handleNotFound)

	smsChain := []gin.HandlerFunc{}
	if cfg.Twilio.ValidateSignature {
		smsChain = append(smsChain, middleware.TwilioSignatureMiddleware(h.Signature, cfg.Server.PublicURL))
	}
	smsChain = append(smsChain, h.SMS.HandleSMS)
	r.engine.POST("/sms", smsChain...)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		r.engine.Handle(method, "/sms", r.handleMethodNotAllowed)
	}

	api := r.engine.Group("/api")
	if cfg.Server.CORSOrigin != "" {
		api.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigin))
		api.OPTIONS("/*path", func(c *gin.Context) {})
	}
	{
		api.POST("/auth/login", h.Auth.Login)
	}

	// the turn log is only served once an admin password is configured
	if cfg.AdminEnabled() {
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.GET("/turns", h.Turns.ListTurns)
		}
	}

	return r, nil
}

// Engine exposes the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"version": r.version,
		"service": "sms-helper",
	})
}

func (r *Router) handleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

func (r *Router) handleMethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}
