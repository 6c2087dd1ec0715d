// Package worker runs Open Finance syncs outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/openfinance"
)

// Syncer is the part of the Open Finance service the worker drives.
type Syncer interface {
	Sync(ctx context.Context, connectionID string) (openfinance.SyncResult, error)
	SyncStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// Consumer delivers queued sync jobs.
type Consumer interface {
	ConsumeConnectionSync(ctx context.Context, handler amqp.Handler) error
}

type Config struct {
	// StaleAfter is how old a connection's last sync may get before the
	// periodic sweep syncs it again.
	StaleAfter time.Duration
	// SweepInterval is how often the sweep runs; zero disables it.
	SweepInterval time.Duration
	// Owner is whose connections the sweep covers.
	Owner core.Owner
}

func DefaultConfig() Config {
	return Config{StaleAfter: 6 * time.Hour, SweepInterval: 30 * time.Minute}
}

type SyncWorker struct {
	syncer Syncer
	config Config
	logger *log.Logger
}

func NewSyncWorker(syncer Syncer, config Config, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{syncer: syncer, config: config, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleSyncMessage runs one queued sync as the owner named in the job.
// Jobs that can never succeed (unknown connection, expired consent) are
// acknowledged instead of requeued.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ConnectionSyncMessage) error {
	ctx = auth.WithOwner(ctx, core.Owner{ID: msg.OwnerID, Email: msg.OwnerEmail})
	logger := w.logger.With(log.FieldConnectionID, msg.ConnectionID, log.FieldOwnerID, msg.OwnerID)

	res, err := w.syncer.Sync(ctx, msg.ConnectionID)
	switch core.KindOf(err) {
	case core.KindNone:
		logger.InfoContext(ctx, "Sync job done", log.FieldCount, res.Imported)
		return nil
	case core.KindNotFound, core.KindValidation, core.KindUnauthenticated:
		logger.WarnContext(ctx, "Dropping sync job", log.NewFields().WithError(err).ToSlice()...)
		return nil
	default:
		return fmt.Errorf("sync connection %s: %w", msg.ConnectionID, err)
	}
}

// Sweep syncs the configured owner's stale connections once.
func (w *SyncWorker) Sweep(ctx context.Context) error {
	if w.config.Owner.ID == "" {
		return nil
	}
	ctx = auth.WithOwner(ctx, w.config.Owner)
	n, err := w.syncer.SyncStale(ctx, w.config.StaleAfter)
	if n > 0 {
		w.logger.InfoContext(ctx, "Stale connections synced", log.FieldCount, n)
	}
	return err
}

// Run consumes jobs and sweeps periodically until ctx is done. A nil
// consumer runs the sweep alone.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	if err := w.Sweep(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sweep failed", log.FieldError, err)
	}

	errc := make(chan error, 1)
	if consumer != nil {
		go func() { errc <- consumer.ConsumeConnectionSync(ctx, w.HandleSyncMessage) }()
	}

	var tick <-chan time.Time
	if w.config.SweepInterval > 0 {
		ticker := time.NewTicker(w.config.SweepInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-tick:
			if err := w.Sweep(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Sweep failed", log.FieldError, err)
			}
		}
	}
}
