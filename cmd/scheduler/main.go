package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bandroom/internal/api"
	"bandroom/internal/clock"
	"bandroom/internal/config"
	"bandroom/internal/conflict"
	"bandroom/internal/db"
	"bandroom/internal/events"
	"bandroom/internal/jobs"
	"bandroom/internal/locks"
	"bandroom/internal/metrics"
	"bandroom/internal/report"
	"bandroom/internal/reservation"
	"bandroom/internal/series"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("BANDROOM_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Scheduling.Timezone).Msg("invalid timezone")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	var rdb *redis.Client
	var locker locks.Locker = locks.NewKeyed()
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		locker = locks.NewRedis(rdb, time.Duration(cfg.Scheduling.LockTTLSeconds)*time.Second)
	}

	metrics.Register()
	clk := clock.System{}
	bus := events.NewBus()
	checker := conflict.NewChecker(database, &logger)

	lifecycle := series.NewService(database, bus, clk, &logger)
	adapter := reservation.NewAdapter(database, clk, loc, bus, &logger)
	lifecycle.RegisterAdapter("rehearsal_reservation", adapter)

	generator := series.NewGenerator(database, lifecycle, locker, loc, bus, &logger)

	job := jobs.NewHorizonJob(jobs.HorizonConfig{
		Cron:            cfg.Scheduling.Cron,
		HorizonDays:     cfg.Scheduling.HorizonDays,
		SeriesPerSecond: cfg.Scheduling.SeriesPerSecond,
	}, database, generator, clk, loc, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := job.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start horizon job")
	}
	defer job.Stop()

	if cfg.API.Enabled {
		if cfg.API.Port == 0 {
			cfg.API.Port = 8080
		}
		bookings := reservation.NewService(database, reservation.Rules{
			MinAdvance: cfg.BookingMinAdvance(),
			MaxAdvance: cfg.BookingMaxAdvance(),
		}, clk, bus, &logger)
		exporter := report.NewExporter(database, report.NewExcelizeWriter)
		server := api.NewHTTPServer(database, checker, bookings, exporter, &logger)
		go startAPIServer(ctx, cfg.API.Port, server, &logger)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Msg("scheduler started")
	<-ctx.Done()
	logger.Info().Msg("scheduler stopped")
}

func startAPIServer(ctx context.Context, port int, server *api.HTTPServer, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	server.Routes(mux)
	serveHTTP(ctx, port, mux, "api", logger)
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serveHTTP(ctx, port, mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serveHTTP(ctx, port, mux, "metrics", logger)
}

func serveHTTP(ctx context.Context, port int, mux *http.ServeMux, name string, logger *zerolog.Logger) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info().Int("port", port).Str("server", name).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Str("server", name).Msg("http server error")
	}
}
