package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/framez/backend/internal/auth"
	"github.com/framez/backend/internal/config"
	"github.com/framez/backend/internal/db"
	"github.com/framez/backend/internal/diagnostics"
	"github.com/framez/backend/internal/handlers"
	"github.com/framez/backend/internal/middleware"
	"github.com/framez/backend/internal/realtime"
	"github.com/framez/backend/internal/repositories"
	"github.com/framez/backend/internal/storage"
)

const (
	sessionPurgeInterval = time.Hour
	rateLimiterIdleTTL   = 10 * time.Minute
)

// Database is the connection pool surface the server needs beyond repositories.
type Database interface {
	db.Pool
	realtime.Execer
	handlers.Pinger
}

// background owns the long-running pieces started alongside the HTTP server.
type background struct {
	hub     *realtime.Hub
	cleaner *storage.Cleaner
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Close stops the listener and session purger, drains the object cleaner and
// disconnects realtime subscribers.
func (b *background) Close(ctx context.Context) error {
	b.cancel()
	b.hub.Close()

	var errs []error
	if err := b.cleaner.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain object cleaner: %w", err))
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("stop background workers: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}

func (b *background) goRun(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, database Database, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, *background, error) {
	if logger == nil {
		logger = slog.Default()
	}

	signer, err := auth.NewTokenSigner(cfg.JWTSecret)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}
	sessionStore := repositories.NewPostgresSessionStore(database)

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	objects, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	hub := realtime.NewHub(cfg.Realtime.SubscriberBuffer, logger)
	publisher, err := realtime.NewPublisher(cfg.Realtime, database, hub)
	if err != nil {
		hub.Close()
		return handlers.Dependencies{}, nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	bg := &background{
		hub:     hub,
		cleaner: storage.NewCleaner(objects, storage.CleanerConfig{QueueSize: cfg.Cleaner.QueueSize, Workers: cfg.Cleaner.Workers}, logger),
		cancel:  cancel,
	}

	if cfg.Realtime.Mode == config.RealtimeModePostgres {
		listener := realtime.NewListener(database, cfg.Realtime.Channel, hub, cfg.Realtime.ReconnectBackoff, logger)
		bg.goRun(func() {
			if err := listener.Run(runCtx); err != nil {
				logger.Error("realtime listener stopped", "error", err)
			}
		})
	}
	bg.goRun(func() { purgeSessions(runCtx, sessionStore, sessionPurgeInterval, logger) })

	deps := handlers.Dependencies{
		Users:             repositories.NewPostgresUserRepository(database),
		Sessions:          auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore, signer),
		Profiles:          repositories.NewPostgresProfileRepository(database),
		Posts:             repositories.NewPostgresPostRepository(database),
		Images:            objects,
		Cleaner:           bg.cleaner,
		Publisher:         publisher,
		Changes:           hub,
		Storage:           diagnostics.Checker{Store: objects, Logger: logger},
		Database:          database,
		AuthLimiter:       middleware.NewKeyedLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.AuthRateBurst, rateLimiterIdleTTL).TrustProxies(proxies),
		MaxImageBytes:     cfg.MaxImageBytes,
		RealtimePingEvery: cfg.Realtime.PingInterval,
	}

	return deps, bg, nil
}

type sessionPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// purgeSessions deletes expired refresh tokens every interval until ctx ends.
func purgeSessions(ctx context.Context, store sessionPurger, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.PurgeExpired(ctx, time.Now())
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("purge expired sessions failed", "error", err)
				}
				continue
			}
			if removed > 0 {
				logger.Info("purged expired sessions", "count", removed)
			}
		}
	}
}
