package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TokenJanitor periodically deletes expired auth tokens.
type TokenJanitor struct {
	tokens   TokenStore
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewTokenJanitor(tokens TokenStore, interval time.Duration) *TokenJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TokenJanitor{tokens: tokens, interval: interval}
}

// Start launches the sweep loop. It returns an error if already running.
func (j *TokenJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return fmt.Errorf("token janitor is already running")
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	slog.InfoContext(ctx, "Token janitor started", "interval", j.interval)
	return nil
}

// Stop signals the loop and waits for it, bounded by ctx.
func (j *TokenJanitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = false
	stop, done := j.stopCh, j.doneCh
	j.mu.Unlock()

	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *TokenJanitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *TokenJanitor) run(ctx context.Context) {
	defer close(j.doneCh)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-j.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *TokenJanitor) sweep(ctx context.Context) {
	if _, err := j.tokens.PurgeExpiredTokens(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to purge expired tokens", "error", err)
	}
}
