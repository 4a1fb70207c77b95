// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/config"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/crypto"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/geo"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/http/handlers"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/http/middleware"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/intake"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/nlu"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/repo"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/resources"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/services"
)

// Deps carries the externally constructed collaborators the router needs.
// Everything else (services, repositories, the directory) is assembled here.
type Deps struct {
	// Cipher encrypts free-text fields at rest.
	Cipher *crypto.Cipher
	// Resolver may be nil when no gazetteer is configured; mapping is then
	// disabled end to end.
	Resolver *geo.Resolver
	// Fuzzer randomizes public coordinates within the privacy radius.
	Fuzzer *geo.Fuzzer
	// AI is the multi-model dialogue layer.
	AI services.Dispatcher
	// AIReady reports dispatch readiness for the health endpoint; nil means
	// the AI layer is not wired (health reports ai_ready=false).
	AIReady func() bool
	// NLU is the external language-understanding collaborator.
	NLU nlu.Analyzer
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, health and metrics endpoints, and then mounts the
// versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Response compression
//  8. Rate limiter (per IP; the submission route carries a second, stricter one)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. Chat and report bodies carry
	// survivor narratives; bodies are never logged, and the usual PII
	// patterns are scrubbed from what is.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-Admin-Token",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compress JSON payloads (the map feed in particular)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 8) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language", "X-Admin-Token"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language", "X-Admin-Token"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS).
	// no-store everywhere: replies may be read on shared devices.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health: database ping plus AI dispatch readiness
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		aiReady := deps.AIReady != nil && deps.AIReady()
		c.JSON(code, gin.H{"status": status, "ai_ready": aiReady})
	})

	// Dependency injection: services ← repo/db/collaborators
	store := repo.NewStore()
	reportSvc := services.NewReportService(db, store, deps.Cipher, deps.Resolver,
		deps.Fuzzer, cfg.MinDescription)
	convSvc := services.NewConversationService(db, store, intake.NewMachine(),
		deps.NLU, deps.AI, reportSvc, resources.NewDirectory(),
		cfg.NLU.Timeout, cfg.AI.Timeout)
	h := handlers.New(convSvc, reportSvc, resources.NewDirectory())

	// Direct submission gets its own, much stricter bucket.
	submitRL := middleware.NewRateLimiter(cfg.SubmitRPS, cfg.SubmitBurst, middleware.KeyByClientIP())

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Chat intake
		api.POST("/chat", h.Chat)
		api.GET("/sessions/:id/status", h.SessionStatus)

		// Reports
		api.POST("/report/submit", submitRL.Handler(), h.SubmitReport)
		api.GET("/incidents", h.ListIncidents)

		// Resource directory
		api.GET("/resources", h.ListResources)

		// Moderation (admin token)
		admin := api.Group("/admin", adminAuth(cfg.AdminToken))
		admin.PUT("/reports/:id/status", h.ModerateReport)
		admin.GET("/stats", h.ReportStats)
	}
}

// adminAuth guards moderation endpoints with a shared token. An empty
// configured token disables the endpoints entirely.
func adminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			handlers.Fail(c, http.StatusForbidden, handlers.ErrCodeForbidden, "admin endpoints disabled")
			return
		}
		got := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			handlers.Fail(c, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "invalid admin token")
			return
		}
		c.Next()
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
