package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/pkg/events"
)

// EntryPublisher delivers outbox entries to the broker.
type EntryPublisher interface {
	Publish(ctx context.Context, entries []events.OutboxEntry) error
}

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// DefaultRelayConfig polls every second in batches of 100.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{BatchSize: 100, PollInterval: time.Second}
}

// OutboxRelay moves staged events from the outbox to the broker. Fetch,
// publish and mark-published share one transaction, so a crash between publish
// and commit re-sends the batch: delivery is at least once.
type OutboxRelay struct {
	uow       port.UnitOfWork
	publisher EntryPublisher
	cfg       RelayConfig
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutboxRelay(uow port.UnitOfWork, publisher EntryPublisher, cfg RelayConfig, logger *slog.Logger) *OutboxRelay {
	def := DefaultRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxRelay{uow: uow, publisher: publisher, cfg: cfg, logger: logger}
}

// RunOnce relays at most one batch and returns how many entries were sent.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	var sent int
	err := r.uow.Within(ctx, func(ctx context.Context, repos port.Repositories) error {
		entries, err := repos.Outbox.FetchUnpublished(ctx, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		if err := r.publisher.Publish(ctx, entries); err != nil {
			return err
		}

		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := repos.Outbox.MarkPublished(ctx, ids); err != nil {
			return err
		}
		sent = len(entries)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("relay outbox: %w", err)
	}
	return sent, nil
}

// Start polls in the background until Stop is called or ctx ends. A full
// batch is followed immediately by another poll.
func (r *OutboxRelay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop(ctx)
	r.logger.Info("outbox relay started",
		"batch_size", r.cfg.BatchSize,
		"poll_interval", r.cfg.PollInterval,
	)
}

// Stop cancels the loop and waits for the in-flight batch, bounded by ctx.
func (r *OutboxRelay) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("outbox relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *OutboxRelay) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			n, err := r.RunOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("outbox relay batch failed", "error", err)
				}
				break
			}
			if n > 0 {
				r.logger.Debug("outbox batch relayed", "count", n)
			}
			if n < r.cfg.BatchSize {
				break
			}
		}
	}
}
