package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/azimjon-95/totli-webapp/internal/adapter/http/fiber/handlers"
	"github.com/azimjon-95/totli-webapp/internal/adapter/realtime"
	"github.com/azimjon-95/totli-webapp/internal/adapter/telegram"
	"github.com/azimjon-95/totli-webapp/internal/adapter/webapp"
	wsAdapter "github.com/azimjon-95/totli-webapp/internal/adapter/websocket"
	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/infrastructure/circuitbreaker"
	"github.com/azimjon-95/totli-webapp/internal/observability/telemetry"
	"github.com/azimjon-95/totli-webapp/internal/service/dashboard"
	"github.com/azimjon-95/totli-webapp/internal/service/health"
	"github.com/azimjon-95/totli-webapp/internal/service/reconcile"
	"github.com/azimjon-95/totli-webapp/pkg/config"
)

var (
	fromDate = flag.String("from", "", "Summary range start (YYYY-MM-DD), default today")
	toDate   = flag.String("to", "", "Summary range end (YYYY-MM-DD), default today")
	verbose  = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	logger, err := newLogger(cfg.Logging, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Dashboard sync stopped with error", zap.Error(err))
	}
	logger.Info("Dashboard sync stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting dashboard sync",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("backend", cfg.WebApp.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	tracerProvider, err := telemetry.InitTracer(telemetry.TracerSettings{
		Enabled:        cfg.OpenTelemetry.Enabled,
		Endpoint:       cfg.OpenTelemetry.Jaeger.Endpoint,
		ServiceName:    cfg.OpenTelemetry.ServiceName,
		ServiceVersion: cfg.App.Version,
		SampleRatio:    cfg.OpenTelemetry.Jaeger.SamplerParam,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// 4. Session token bridge
	bridge := telegram.NewBridge(tokenSource(cfg.Telegram, logger))

	// 5. Backend API client behind the circuit breaker
	httpClient := circuitbreaker.NewHTTPClientWithSettings(circuitbreaker.HTTPClientSettings{
		Timeout:          cfg.WebApp.Timeout,
		Enabled:          cfg.CircuitBreaker.Enabled,
		Name:             "webapp-api",
		MaxRequests:      uint32(cfg.CircuitBreaker.MaxRequests),
		Interval:         cfg.CircuitBreaker.Interval,
		BreakerTimeout:   cfg.CircuitBreaker.Timeout,
		FailureThreshold: uint32(cfg.CircuitBreaker.FailureThreshold),
	}, logger)
	apiClient := webapp.NewClient(cfg.WebApp.BaseURL, httpClient, bridge, logger)

	// 6. Dashboard state controller
	formatter, err := reconcile.NewFormatter(reconcile.FormatterOptions{
		Locale:         cfg.Region.Locale,
		CurrencySuffix: cfg.Region.CurrencySuffix,
		Timezone:       cfg.Region.Timezone,
	})
	if err != nil {
		return err
	}
	controller := dashboard.NewController(apiClient, bridge, formatter, cfg.Dashboard.FeedLimit, logger)

	rng, err := domain.ParseDateRange(*fromDate, *toDate, time.Now().In(formatter.Location()))
	if err != nil {
		return err
	}

	// 7. Snapshot push hub
	hub := wsAdapter.NewHub(logger)
	controller.OnChange(hub.PublishSnapshot)

	// 8. Health checks
	healthService := health.NewService(cfg.App.Version, logger)
	healthService.RegisterChecker("session", health.SessionChecker(bridge))
	healthService.RegisterChecker("dashboard", health.DashboardChecker(controller.Snapshot))

	// 9. Realtime subscriber
	loops := &syncLoops{
		controller: controller,
		auth:       bridge,
		schedule:   cfg.Dashboard.ResyncSchedule,
		log:        logger,
	}
	if cfg.Realtime.Enabled {
		subscriber, err := realtime.New(realtimeSettings(cfg), bridge, logger)
		if err != nil {
			return fmt.Errorf("failed to create realtime subscriber: %w", err)
		}
		defer subscriber.Close()
		healthService.RegisterChecker("realtime", health.RealtimeChecker(subscriber.Connected))
		loops.subscriber = subscriber
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	// 10. Local presentation bridge
	if cfg.HTTP.Enabled {
		app := newApp(cfg, handlers.NewDashboardHandler(controller, formatter.Location(), logger), hub, healthService, logger)
		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		g.Go(func() error {
			logger.Info("Starting presentation bridge", zap.String("addr", addr))
			if err := app.Listen(addr); err != nil {
				return fmt.Errorf("presentation bridge failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return app.ShutdownWithTimeout(5 * time.Second)
		})
	}

	// 11. Initial load. Without a session this records ErrAuthUnavailable
	// and makes no network call.
	if err := controller.Refresh(gctx, rng); errors.Is(err, domain.ErrAuthUnavailable) {
		logger.Error("No Telegram session token: open the dashboard from inside Telegram. Realtime sync waits for a token",
			zap.String("init_data_env", cfg.Telegram.InitDataEnv),
			zap.String("init_data_file", cfg.Telegram.InitDataFile),
			zap.Bool("resync_retries", cfg.Dashboard.ResyncSchedule != ""),
		)
	}

	// 12. Realtime refresh signals and periodic full resync
	if err := loops.start(gctx); err != nil {
		stop()
		_ = g.Wait()
		return err
	}

	<-gctx.Done()
	logger.Info("Shutting down dashboard sync")
	loops.stop()

	return g.Wait()
}

func newLogger(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg.Encoding = "console"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func tokenSource(cfg config.TelegramConfig, logger *zap.Logger) telegram.Source {
	sources := []telegram.Source{telegram.StaticSource(cfg.InitData)}
	if cfg.InitDataEnv != "" {
		sources = append(sources, telegram.EnvSource(cfg.InitDataEnv))
	}
	if cfg.InitDataFile != "" {
		sources = append(sources, telegram.FileSource(cfg.InitDataFile, logger))
	}
	return telegram.FirstOf(sources...)
}

func realtimeSettings(cfg *config.Config) realtime.Settings {
	return realtime.Settings{
		Transport: cfg.Realtime.Transport,
		SocketIO: realtime.SocketIOConfig{
			BaseURL:      cfg.WebApp.BaseURL,
			Path:         cfg.Realtime.Path,
			Namespace:    cfg.Realtime.Namespace,
			Event:        cfg.Realtime.Event,
			ReconnectMin: cfg.Realtime.ReconnectMin,
			ReconnectMax: cfg.Realtime.ReconnectMax,
		},
		NATSURL:           cfg.NATS.URL,
		NATSSubject:       cfg.Realtime.Subject,
		NATSReconnectWait: cfg.NATS.ReconnectWait,
		ClientName:        cfg.App.Name,
		RedisURL:          cfg.Redis.URL,
		RedisChannel:      cfg.Realtime.Channel,
	}
}
