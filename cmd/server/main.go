package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"tutoria/server/internal/calendar"
	"tutoria/server/internal/config"
	serverhttp "tutoria/server/internal/http"
	"tutoria/server/internal/logging"
	"tutoria/server/internal/observability"
	"tutoria/server/internal/repository"
	"tutoria/server/internal/tracker"
	"tutoria/server/migrations"
)

const release = "tutoria-server@dev"

func main() {
	cfg := config.Load()

	log, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("init logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Closer()

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, release)
	if err != nil {
		log.Sugar.Warnw("sentry init failed", "err", err)
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		log.Sugar.Fatalw("apply migrations", "err", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Sugar.Fatalw("connect postgres", "err", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)
	if err := store.Ping(ctx); err != nil {
		log.Sugar.Fatalw("ping postgres", "err", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Sugar.Warnw("redis unreachable, password reset disabled", "err", err)
			redisClient = nil
		}
		if redisClient != nil {
			defer redisClient.Close()
		}
	}

	cal, err := calendar.Load(cfg.CalendarPath, cfg.CalendarYear)
	if err != nil {
		log.Sugar.Fatalw("load calendar", "path", cfg.CalendarPath, "err", err)
	}

	attendance := tracker.NewAttendance(store, store, cal, cfg.ExpectedWeeks, log.Sugar)
	assessment := tracker.NewAssessment(store, store, log.Sugar)
	server := serverhttp.NewServer(cfg, store, attendance, assessment, cal, redisClient, log.Sugar)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Sugar.Infow("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Sugar.Infow("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.CaptureErr(err)
			log.Sugar.Fatalw("http server failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Sugar.Errorw("graceful shutdown failed", "err", err)
	}
}

// runMigrations applies the embedded goose migrations over database/sql,
// which goose requires; the pgx pool is opened separately afterwards.
func runMigrations(databaseURL string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}
