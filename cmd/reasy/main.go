package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"reasy/internal/account"
	"reasy/internal/api"
	"reasy/internal/audit"
	"reasy/internal/booking"
	"reasy/internal/config"
	"reasy/internal/db"
	"reasy/internal/events"
	"reasy/internal/metrics"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("REASY_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("set auth.jwt_secret in config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Booking.Timezone).Msg("invalid booking timezone")
	}

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		rdb    *redis.Client
		locker booking.Locker = booking.NewLocalLocker()
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = booking.NewRedisLocker(rdb)
		logger.Info().Str("addr", cfg.Redis.Address).Msg("using redis slot locks")
	}

	bus := events.NewEventBus()
	subscribeEventLog(bus, &logger)
	trail := audit.NewService(database, audit.Config{RetentionDays: cfg.Audit.RetentionDays}, &logger)
	trail.Attach(bus)
	trail.Start()
	defer trail.Stop()

	accounts := account.NewService(database, cfg.Auth.BcryptCost, &logger)
	tokens, err := account.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.TokenTTL())
	if err != nil {
		logger.Fatal().Err(err).Msg("create token issuer")
	}
	bookings := booking.NewService(database, locker, bus, booking.Options{
		LockTTL:           cfg.BookingLockTTL(),
		VisibleDaysRadius: cfg.Booking.VisibleDaysRadius,
		Location:          loc,
	}, &logger)

	// Initial load + hot reload of the business catalog
	if err := config.WatchCatalog(ctx, cfg.Catalog.Path, cfg.CatalogReloadInterval(), &logger, func(cat *config.Catalog, _ config.CatalogVersion) error {
		return database.SyncCatalog(ctx, cat, accounts.HashPassword)
	}); err != nil {
		logger.Error().Err(err).Str("path", cfg.Catalog.Path).Msg("catalog watch failed")
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		go startBackupLoop(ctx, database, cfg, &logger)
	}

	server := api.NewServer(api.Deps{
		Catalog:         database,
		Bookings:        bookings,
		Accounts:        accounts,
		Tokens:          tokens,
		Audit:           trail,
		LoginRatePerSec: cfg.Auth.LoginRatePerSec,
		LoginBurst:      cfg.Auth.LoginBurst,
	}, &logger)
	srv := server.NewHTTPServer(fmt.Sprintf(":%d", cfg.HTTP.Port), cfg.ReadTimeout(), cfg.WriteTimeout())

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api server shutdown")
		}
	}()

	logger.Info().Int("port", cfg.HTTP.Port).Msg("reasy api started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("reasy api stopped")
}

func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	logEvent := func(event events.Event) error {
		var p events.ReservationPayload
		if err := event.Decode(&p); err != nil {
			return err
		}
		logger.Info().
			Str("event", event.Type).
			Int64("reservation_id", p.ReservationID).
			Int64("business_id", p.BusinessID).
			Int64("client_id", p.ClientID).
			Str("date", p.Date).
			Str("start", p.StartTime).
			Str("status", p.Status).
			Msg("reservation event")
		return nil
	}
	for _, t := range []string{events.ReservationCreated, events.ReservationAccepted, events.ReservationDeclined} {
		bus.Subscribe(t, logEvent)
	}
}

func startBackupLoop(ctx context.Context, database *db.DB, cfg *config.Config, logger *zerolog.Logger) {
	if err := os.MkdirAll(cfg.Backup.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create backup directory")
		return
	}

	// Run first backup after a short delay
	select {
	case <-time.After(1 * time.Minute):
		runBackupTask(ctx, database, cfg, logger)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(cfg.BackupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runBackupTask(ctx, database, cfg, logger)
		case <-ctx.Done():
			return
		}
	}
}

func runBackupTask(ctx context.Context, database *db.DB, cfg *config.Config, logger *zerolog.Logger) {
	timestamp := time.Now().Format("20060102_150405")
	dest := filepath.Join(cfg.Backup.Path, fmt.Sprintf("reasy_%s.db", timestamp))

	logger.Info().Str("path", dest).Msg("starting database backup")
	if err := database.Backup(ctx, dest); err != nil {
		logger.Error().Err(err).Msg("backup failed")
	} else {
		logger.Info().Msg("backup completed successfully")
	}

	deleted, err := database.CleanupBackups(cfg.Backup.Path, cfg.BackupRetention())
	if err != nil {
		logger.Error().Err(err).Msg("backup cleanup failed")
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
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

	serveUntilDone(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serveUntilDone(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "metrics", logger)
}

func serveUntilDone(ctx context.Context, srv *http.Server, name string, logger *zerolog.Logger) {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
