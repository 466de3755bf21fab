package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinquote/app"
	"coinquote/config"
	"coinquote/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv(config.PathEnv))
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg)
	log.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Str("feed", cfg.Feed.URL).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("feed start failed")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case <-a.Feed.Done():
		// no reconnection: keep serving the last known books until asked to stop
		log.Error().Err(a.Feed.Err()).Msg("feed halted, serving stale books")
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("stopped")
}
