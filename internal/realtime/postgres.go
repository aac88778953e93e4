package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/framez/backend/internal/db"
	"github.com/framez/backend/internal/logging"
	"github.com/framez/backend/internal/models"
)

// maxNotifyPayload stays under the 8000 byte NOTIFY payload limit.
const maxNotifyPayload = 7900

// Execer runs a statement without returning rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGNotifier publishes changes with pg_notify so every backend replica
// listening on the channel observes them.
type PGNotifier struct {
	exec    Execer
	channel string
}

// NewPGNotifier constructs a notifier for channel.
func NewPGNotifier(exec Execer, channel string) *PGNotifier {
	return &PGNotifier{exec: exec, channel: channel}
}

// Publish encodes change and sends it on the channel.
func (n *PGNotifier) Publish(ctx context.Context, change models.PostChange) error {
	payload, err := encodeChange(change)
	if err != nil {
		return err
	}
	if _, err := n.exec.Exec(ctx, `SELECT pg_notify($1, $2)`, n.channel, payload); err != nil {
		return fmt.Errorf("notify %s: %w", n.channel, err)
	}
	return nil
}

// encodeChange marshals change, dropping post bodies when the result would
// not fit in a notification. Subscribers still learn which row changed.
func encodeChange(change models.PostChange) (string, error) {
	raw, err := json.Marshal(change)
	if err != nil {
		return "", fmt.Errorf("encode change: %w", err)
	}
	if len(raw) <= maxNotifyPayload {
		return string(raw), nil
	}

	change.Record = withoutContent(change.Record)
	change.OldRecord = withoutContent(change.OldRecord)
	raw, err = json.Marshal(change)
	if err != nil {
		return "", fmt.Errorf("encode change: %w", err)
	}
	if len(raw) > maxNotifyPayload {
		return "", fmt.Errorf("encode change: payload of %d bytes exceeds notify limit", len(raw))
	}
	return string(raw), nil
}

func withoutContent(post *models.Post) *models.Post {
	if post == nil {
		return nil
	}
	trimmed := *post
	trimmed.Content = nil
	return &trimmed
}

// Listener relays notifications on a Postgres channel into a local publisher.
type Listener struct {
	pool    db.Pool
	channel string
	sink    Publisher
	backoff time.Duration
	logger  *slog.Logger
}

// NewListener constructs a listener forwarding notifications on channel to sink.
func NewListener(pool db.Pool, channel string, sink Publisher, backoff time.Duration, logger *slog.Logger) *Listener {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{pool: pool, channel: channel, sink: sink, backoff: backoff, logger: logger}
}

// Run listens until ctx is canceled, reconnecting after connection failures.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("realtime listener disconnected", "channel", l.channel, "error", err, "retryIn", l.backoff)

		timer := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	ident := pgx.Identifier{l.channel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+ident); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(cleanupCtx, "UNLISTEN "+ident); err != nil {
			conn.Conn().Close(cleanupCtx)
		}
	}()

	l.logger.Info("realtime listener subscribed", "channel", l.channel)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, notification.Payload)
	}
}

func (l *Listener) dispatch(ctx context.Context, payload string) {
	var change models.PostChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		l.logger.Warn("discarding malformed change notification", "error", err)
		return
	}
	if change.Table == "" || change.Type == "" {
		l.logger.Warn("discarding incomplete change notification", "type", change.Type, "table", change.Table)
		return
	}

	ctx, span := logging.StartSpan(ctx, "realtime.dispatch", "type", change.Type, "ownerId", change.OwnerID())
	err := l.sink.Publish(ctx, change)
	span.End(err)
}

var _ Publisher = (*PGNotifier)(nil)
