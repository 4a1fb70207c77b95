// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database and gazetteer paths, encryption,
// AI endpoint ordering, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AIConfig describes the ordered set of interchangeable AI chat backends.
// The model list is priority-ordered: the first entry is probed first at
// startup and preferred at dispatch time.
type AIConfig struct {
	APIKey    string        // AI_API_KEY
	BaseURL   string        // AI_BASE_URL for OpenAI-compatible gateways
	Models    []string      // AI_MODELS, CSV of model names in priority order
	Timeout   time.Duration // AI_DISPATCH_TIMEOUT per generation attempt
	ProbeWait time.Duration // AI_PROBE_TIMEOUT per liveness probe
	IdleTTL   time.Duration // AI_SESSION_IDLE_TTL before context eviction
}

// NLUConfig points at the external language-understanding collaborator.
type NLUConfig struct {
	URL     string        // NLU_URL (e.g. "http://localhost:8000/analyze")
	Timeout time.Duration // NLU_TIMEOUT
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 30s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath         string  // SQLite path
	GazetteerPath  string  // GeoNames-format TSV; empty disables the file load
	EncryptionKey  string  // base64 32-byte key for field encryption
	AdminToken     string  // bearer token for moderation endpoints
	FuzzRadiusKM   float64 // privacy fuzzing radius for public coordinates
	MinDescription int     // minimum incident description length in runes

	// External collaborators
	AI  AIConfig
	NLU NLUConfig

	// Rate limiting
	RateRPS     float64 // general traffic, tokens per second (>= 0)
	RateBurst   int     // bucket size (>= 1)
	SubmitRPS   float64 // report submission, much stricter
	SubmitBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:         getenv("DB_PATH", "vee.db"),
		GazetteerPath:  getenv("GAZETTEER_PATH", "data/kenya_locations.tsv"),
		EncryptionKey:  getenv("ENCRYPTION_KEY", ""),
		AdminToken:     getenv("ADMIN_TOKEN", ""),
		FuzzRadiusKM:   getfloat("FUZZ_RADIUS_KM", 5.0),
		MinDescription: getint("MIN_DESCRIPTION_RUNES", 10),

		AI: AIConfig{
			APIKey:    getenv("AI_API_KEY", ""),
			BaseURL:   getenv("AI_BASE_URL", ""),
			Models:    splitCSV(getenv("AI_MODELS", "gemini-1.5-pro,gemini-1.5-flash,gemini-pro")),
			Timeout:   getdur("AI_DISPATCH_TIMEOUT", 20*time.Second),
			ProbeWait: getdur("AI_PROBE_TIMEOUT", 5*time.Second),
			IdleTTL:   getdur("AI_SESSION_IDLE_TTL", 30*time.Minute),
		},
		NLU: NLUConfig{
			URL:     getenv("NLU_URL", "http://localhost:8000/analyze"),
			Timeout: getdur("NLU_TIMEOUT", 5*time.Second),
		},

		// Rate limiting
		RateRPS:     getfloat("RATE_RPS", 5.0),
		RateBurst:   getint("RATE_BURST", 10),
		SubmitRPS:   getfloat("SUBMIT_RPS", 0.01),
		SubmitBurst: getint("SUBMIT_BURST", 3),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "vee-reporting"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if len(cfg.AI.Models) == 0 {
		return cfg, errors.New("AI_MODELS must list at least one model")
	}
	if cfg.AI.Timeout <= 0 || cfg.AI.ProbeWait <= 0 {
		return cfg, errors.New("AI timeouts must be positive durations")
	}
	if cfg.NLU.Timeout <= 0 {
		return cfg, errors.New("NLU_TIMEOUT must be a positive duration")
	}
	if cfg.FuzzRadiusKM <= 0 {
		return cfg, errors.New("FUZZ_RADIUS_KM must be > 0")
	}
	if cfg.MinDescription < 1 {
		return cfg, errors.New("MIN_DESCRIPTION_RUNES must be >= 1")
	}
	if cfg.RateRPS < 0 || cfg.SubmitRPS < 0 {
		return cfg, errors.New("rate limits must be >= 0")
	}
	if cfg.RateBurst < 1 || cfg.SubmitBurst < 1 {
		return cfg, errors.New("rate limit bursts must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
