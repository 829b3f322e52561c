// Package app wires configuration, storage, services, and the HTTP gateway
// together and owns the process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dormouse-bot/dormouse/internal/adapter/postgres"
	pgcheckin "github.com/dormouse-bot/dormouse/internal/adapter/postgres/checkin"
	pgpending "github.com/dormouse-bot/dormouse/internal/adapter/postgres/pending"
	pgreport "github.com/dormouse-bot/dormouse/internal/adapter/postgres/report"
	pgsession "github.com/dormouse-bot/dormouse/internal/adapter/postgres/session"
	pgundo "github.com/dormouse-bot/dormouse/internal/adapter/postgres/undo"
	"github.com/dormouse-bot/dormouse/internal/config"
	"github.com/dormouse-bot/dormouse/internal/service/checkin"
	"github.com/dormouse-bot/dormouse/internal/service/history"
	"github.com/dormouse-bot/dormouse/internal/service/report"
	"github.com/dormouse-bot/dormouse/internal/transport/rest"
	"github.com/dormouse-bot/dormouse/pkg/userlock"
)

// Run is the application entry point. It loads configuration, connects to
// the database, assembles the services and the gateway, starts the HTTP
// server and the background sweeper, and blocks until ctx is canceled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("timezone", cfg.Bot.Timezone),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	checkinRepo := pgcheckin.New(pool)
	sessionRepo := pgsession.New(pool)
	pendingRepo := pgpending.New(pool)
	undoRepo := pgundo.New(pool)
	reportRepo := pgreport.New(pool)
	tx := postgres.NewTxManager(pool)

	loc := cfg.Location()

	// One keyed lock spans every service that mutates per-user state.
	locks := userlock.New()

	checkinSvc := checkin.NewService(logger, checkinRepo, sessionRepo, pendingRepo, undoRepo, tx, locks, loc, cfg.Bot.PendingGrace)
	historySvc := history.NewService(logger, checkinRepo, sessionRepo, pendingRepo, undoRepo, reportRepo, tx, locks, cfg.Bot.AdminUserID)
	reportSvc := report.NewService(logger, reportRepo, loc)

	handler := rest.NewHandler(logger, checkinSvc, historySvc, reportSvc)
	health := rest.NewHealthHandler(pool, BuildVersion())
	router := rest.NewRouter(logger, handler, health)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		runSweeper(ctx, logger, checkinSvc, reportSvc, cfg.Bot.SweepInterval)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
	<-sweeperDone

	return nil
}

// runSweeper periodically promotes stale pending goodnights and posts the
// weekly summary once its day arrives. The generated summary text is logged;
// the chat adapter delivers it by polling the summary endpoint.
func runSweeper(ctx context.Context, log *slog.Logger, checkins *checkin.Service, reports *report.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now().UTC()

		if n, err := checkins.PromotePending(ctx, now); err != nil {
			log.ErrorContext(ctx, "pending sweep failed", slog.Any("error", err))
		} else if n > 0 {
			log.InfoContext(ctx, "promoted pending goodnights", slog.Int("count", n))
		}

		if text, posted, err := reports.WeeklyIfDue(ctx, now); err != nil {
			log.ErrorContext(ctx, "weekly summary failed", slog.Any("error", err))
		} else if posted {
			log.InfoContext(ctx, "weekly summary generated", slog.String("summary", text))
		}
	}
}
