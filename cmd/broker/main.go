package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "github.com/kopp/oauth2-api-experiment/api/echo"
	"github.com/kopp/oauth2-api-experiment/config"
	"github.com/kopp/oauth2-api-experiment/internal/broker"
	"github.com/kopp/oauth2-api-experiment/internal/flow"
	"github.com/kopp/oauth2-api-experiment/internal/metrics"
	"github.com/kopp/oauth2-api-experiment/internal/provider"
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

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Msg("HTTP request")
			return nil
		},
	})
}

func main() {
	cfg, err := config.LoadBrokerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg.LogLevel, cfg.LogPretty)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("base_url", cfg.BaseURL).
		Str("authorize_url", cfg.ProviderAuthorizeURL).
		Msg("Starting authentication broker...")

	introspectURL := cfg.ProviderIntrospectURL
	if introspectURL == "" {
		// GitHub's app-token-check endpoint carries the client id in the path.
		introspectURL = fmt.Sprintf("https://api.github.com/applications/%s/token", cfg.OAuthClientID)
	}

	providerClient := provider.NewClient(provider.Config{
		ClientID:      cfg.OAuthClientID,
		ClientSecret:  cfg.OAuthClientSecret,
		Scope:         cfg.OAuthScope,
		CallbackURL:   cfg.CallbackURL(),
		AuthorizeURL:  cfg.ProviderAuthorizeURL,
		TokenURL:      cfg.ProviderTokenURL,
		IntrospectURL: introspectURL,
		Timeout:       time.Duration(cfg.ProviderTimeoutSec) * time.Second,
	})

	states := flow.NewStateStore(time.Duration(cfg.StateTTLMin) * time.Minute)
	defer states.Close()

	redirects := flow.NewRedirectStore(time.Duration(cfg.RedirectTTLHour) * time.Hour)
	defer redirects.Close()

	service := broker.NewService(providerClient, states, redirects, cfg.WelcomeURL())

	metrics.Register(prometheus.DefaultRegisterer)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	echoapi.NewBrokerAPI(service).RegisterRoutes(e)

	go func() {
		if serveErr := e.Start(":" + cfg.HTTPPort); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatal().Err(serveErr).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down broker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Broker gracefully stopped.")
}
