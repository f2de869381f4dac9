package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "github.com/kopp/oauth2-api-experiment/api/echo"
	"github.com/kopp/oauth2-api-experiment/config"
)

func initLogger(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
		log.Warn().Str("configured_log_level", level).Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func main() {
	cfg, err := config.LoadRelyingConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg.LogLevel, cfg.LogPretty)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("broker_url", cfg.BrokerBaseURL).
		Msg("Starting relying service...")

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	echoapi.NewRelyingAPI(cfg.BaseURL, cfg.BrokerBaseURL).RegisterRoutes(e)

	go func() {
		if serveErr := e.Start(":" + cfg.HTTPPort); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatal().Err(serveErr).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down relying service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Relying service gracefully stopped.")
}
