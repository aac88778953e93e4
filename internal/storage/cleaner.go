package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ObjectDeleter removes stored objects.
type ObjectDeleter interface {
	Delete(ctx context.Context, keys ...string) error
}

// CleanerConfig controls the concurrency characteristics of the cleaner.
type CleanerConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// ErrCleanerClosed is returned by Enqueue after Shutdown.
var ErrCleanerClosed = errors.New("object cleaner closed")

// Cleaner removes objects that no longer back any post (deleted posts,
// failed inserts) on a background worker pool.
type Cleaner struct {
	deleter ObjectDeleter
	logger  *slog.Logger
	timeout time.Duration

	// mu orders sends against Shutdown: once closed is set no key can
	// enter jobs, so workers that observe cancellation drain everything.
	mu     sync.RWMutex
	closed bool

	jobs   chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCleaner starts the worker pool.
func NewCleaner(deleter ObjectDeleter, cfg CleanerConfig, logger *slog.Logger) *Cleaner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Cleaner{
		deleter: deleter,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan string, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}

	return c
}

// Enqueue schedules removal of key. It blocks while the queue is full.
func (c *Cleaner) Enqueue(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrCleanerClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.jobs <- key:
		return nil
	}
}

// Shutdown stops accepting work and waits for queued removals to finish.
func (c *Cleaner) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *Cleaner) worker() {
	defer c.wg.Done()

	for {
		select {
		case key := <-c.jobs:
			c.remove(key)
		case <-c.ctx.Done():
			c.drain()
			return
		}
	}
}

// drain removes whatever was queued before shutdown.
func (c *Cleaner) drain() {
	for {
		select {
		case key := <-c.jobs:
			c.remove(key)
		default:
			return
		}
	}
}

func (c *Cleaner) remove(key string) {
	if c.deleter == nil {
		c.logger.Error("object cleaner has no deleter", "key", key)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.deleter.Delete(ctx, key); err != nil {
		c.logger.Error("remove orphaned object", "key", key, "error", err)
		return
	}
	c.logger.Debug("removed orphaned object", "key", key)
}
