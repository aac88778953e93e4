package app

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/framez/backend/internal/config"
	"github.com/framez/backend/internal/realtime"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func (fakePool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (fakePool) Ping(context.Context) error { return nil }

func testConfig(mode string) config.Config {
	return config.Config{
		JWTSecret:       "deps-test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		AuthRateLimit:   5,
		AuthRateWindow:  time.Minute,
		AuthRateBurst:   5,
		ObjectStore:     config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
		Realtime:        config.RealtimeConfig{Mode: mode, Channel: "framez_post_changes", ReconnectBackoff: 10 * time.Millisecond},
		Cleaner:         config.CleanerConfig{QueueSize: 4, Workers: 1},
	}
}

func TestBuildDependencies(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	for _, mode := range []string{config.RealtimeModeLocal, config.RealtimeModePostgres} {
		t.Run(mode, func(t *testing.T) {
			deps, bg, err := buildDependencies(context.Background(), fakePool{}, testConfig(mode), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := bg.Close(ctx); err != nil {
					t.Errorf("close: %v", err)
				}
			}()

			if deps.Users == nil || deps.Sessions == nil || deps.Profiles == nil || deps.Posts == nil {
				t.Fatal("expected repositories and session manager to be configured")
			}
			if deps.Images == nil || deps.Cleaner == nil || deps.Storage == nil {
				t.Fatal("expected object storage to be configured")
			}
			if deps.Changes == nil || deps.AuthLimiter == nil || deps.Database == nil {
				t.Fatal("expected realtime, rate limiting and health to be configured")
			}

			_, isNotifier := deps.Publisher.(*realtime.PGNotifier)
			if want := mode == config.RealtimeModePostgres; isNotifier != want {
				t.Fatalf("mode %s: unexpected publisher %T", mode, deps.Publisher)
			}
		})
	}
}

func TestBuildDependenciesRejectsUnknownRealtimeMode(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	_, _, err := buildDependencies(context.Background(), fakePool{}, testConfig("smoke-signals"), nil)
	if !errors.Is(err, realtime.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestBuildDependenciesRejectsInvalidTrustedProxy(t *testing.T) {
	cfg := testConfig(config.RealtimeModeLocal)
	cfg.TrustedProxies = []string{"10.0.0.0/99"}

	if _, _, err := buildDependencies(context.Background(), fakePool{}, cfg, nil); err == nil || !strings.Contains(err.Error(), "trusted proxy") {
		t.Fatalf("expected trusted proxy error, got %v", err)
	}
}

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) PurgeExpired(context.Context, time.Time) (int64, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestPurgeSessionsRunsUntilCanceled(t *testing.T) {
	purger := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		purgeSessions(ctx, purger, 5*time.Millisecond, nil)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for purger.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if purger.calls.Load() < 2 {
		t.Fatalf("expected repeated purges, got %d", purger.calls.Load())
	}
}
