// Command server runs the incident reporting API: the chat intake surface,
// the report submission gateway, the anonymized map feed, and the resource
// directory, behind the full middleware stack.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/config"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/crypto"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/geo"
	httpapi "github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/http"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/llm"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/nlu"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/observability"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/repo"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	deps := buildDeps(ctx, cfg)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// buildDeps assembles the router's injected collaborators: the field cipher,
// the location resolver and fuzzer, the AI dispatch manager, and the NLU
// client.
func buildDeps(ctx context.Context, cfg config.Config) httpapi.Deps {
	keyB64 := cfg.EncryptionKey
	if keyB64 == "" {
		// An ephemeral key keeps development working but makes stored
		// ciphertexts unreadable after restart.
		generated, err := crypto.GenerateKey()
		if err != nil {
			log.Fatal().Err(err).Msg("key generation failed")
		}
		keyB64 = generated
		log.Warn().Msg("ENCRYPTION_KEY not set, using an ephemeral key; stored reports will be unreadable after restart")
	}
	cipher, err := crypto.NewCipherFromBase64(keyB64)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ENCRYPTION_KEY")
	}

	var resolver *geo.Resolver
	if cfg.GazetteerPath != "" {
		gaz, err := geo.LoadTSV(cfg.GazetteerPath)
		if err != nil {
			// The cascade still resolves through county centroids and the
			// national default without a gazetteer.
			log.Warn().Err(err).Str("path", cfg.GazetteerPath).
				Msg("gazetteer unavailable, resolving from county centroids only")
			resolver = geo.NewResolver(nil)
		} else {
			resolver = geo.NewResolver(gaz)
		}
	}

	var fuzzer *geo.Fuzzer
	if resolver != nil {
		fuzzer = geo.NewFuzzer(cfg.FuzzRadiusKM, time.Now().UnixNano())
	}

	client := llm.NewOpenAIClient(cfg.AI.APIKey, cfg.AI.BaseURL)
	providers := make([]llm.Provider, 0, len(cfg.AI.Models))
	for _, model := range cfg.AI.Models {
		providers = append(providers, llm.NewOpenAIProvider(client, model))
	}
	manager := llm.NewManager(providers, cfg.AI.ProbeWait, cfg.AI.IdleTTL)
	if err := manager.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Strs("models", cfg.AI.Models).Msg("no AI endpoint passed its startup probe")
	}
	log.Info().Str("endpoint", manager.DefaultEndpoint()).Msg("AI dispatch ready")

	return httpapi.Deps{
		Cipher:   cipher,
		Resolver: resolver,
		Fuzzer:   fuzzer,
		AI:       manager,
		AIReady:  manager.Ready,
		NLU:      nlu.NewClient(cfg.NLU.URL, cfg.NLU.Timeout),
	}
}
