package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/voicerelay/internal/adapters/http"
	"github.com/dkeye/voicerelay/internal/adapters/ws"
	"github.com/dkeye/voicerelay/internal/app/relay"
	"github.com/dkeye/voicerelay/internal/config"
	"github.com/dkeye/voicerelay/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := config.Flags("server")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("failed to parse flags")
	}
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if err := cfg.ValidateRelay(); err != nil {
		log.Fatal().Err(err).Msg("relay not configured")
	}
	log.Info().Str("upstream", cfg.Upstream.URL).Str("api_key", cfg.MaskedKey()).Msg("upstream configured")

	m := metrics.New()
	reg := relay.NewRegistry(m)
	dialer := &ws.Dialer{
		URL:       cfg.Upstream.URL,
		APIKey:    cfg.Upstream.APIKey,
		Timeout:   cfg.Upstream.DialTimeout,
		ReadLimit: cfg.ReadLimit,
	}

	r := router.SetupRouter(ctx, cfg, router.Deps{Registry: reg, Dialer: dialer, Metrics: m})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Voice relay started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	reg.CloseAll()
	if !reg.Wait(shutdownCtx) {
		log.Warn().Int("sessions", reg.Count()).Msg("sessions still open at exit")
	}
	log.Info().Msg("Server exited gracefully")
}
