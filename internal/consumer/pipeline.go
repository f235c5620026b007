package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xshopai/product-service/internal/domain"
	"github.com/xshopai/product-service/internal/event"
)

// Ledger defines the interface for checking and storing processed event IDs.
type Ledger interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType, subjectID string, metadata map[string]string) error
}

// Transactor defines an interface for an object that can execute a function within a transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Receipt is what a business handler reports back for the ledger entry.
type Receipt struct {
	SubjectID string
	Metadata  map[string]string
}

// ApplyFunc executes the business mutation for one event. It runs inside a
// transaction together with the ledger write.
type ApplyFunc func(ctx context.Context, env event.Envelope) (Receipt, error)

// AfterFunc runs after a successful commit, outside the transaction. Used for
// advisory work such as cache invalidation.
type AfterFunc func(ctx context.Context, env event.Envelope, receipt Receipt)

// Pipeline decorates business handlers with idempotency checks, transactional
// ledger marking and retry logic.
type Pipeline struct {
	ledger         Ledger
	transactor     Transactor
	after          AfterFunc
	maxElapsedTime time.Duration
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMaxElapsedTime is an option to provide a custom backoff max elapsed time.
func WithMaxElapsedTime(maxElapsedTime time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.maxElapsedTime = maxElapsedTime
	}
}

// WithAfterApplied registers a hook that runs once per successfully applied
// event, after the transaction commits.
func WithAfterApplied(fn AfterFunc) PipelineOption {
	return func(p *Pipeline) {
		p.after = fn
	}
}

// NewPipeline creates a new idempotent consumption pipeline.
func NewPipeline(ledger Ledger, transactor Transactor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		ledger:         ledger,
		transactor:     transactor,
		maxElapsedTime: 1 * time.Minute, // Set default
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle processes one event with idempotency and retry logic. The apply
// function and the ledger insert commit atomically; when concurrent
// deliveries race past the pre-check, the ledger's unique constraint rejects
// the loser's insert and its whole transaction rolls back.
func (p *Pipeline) Handle(ctx context.Context, env event.Envelope, apply ApplyFunc) error {
	if env.ID == "" {
		slog.WarnContext(ctx, "Event missing ID field, cannot ensure idempotency", "eventType", env.Type)
		return Discard("missing event id", nil)
	}

	// 1. Idempotency Check
	isProcessed, err := p.ledger.IsProcessed(ctx, env.ID)
	if err != nil {
		return fmt.Errorf("failed to check for event idempotency: %w", err)
	}
	if isProcessed {
		slog.InfoContext(ctx, "Event already processed, skipping", "eventID", env.ID, "eventType", env.Type)
		return nil
	}

	var receipt Receipt
	operation := func() (any, error) {
		// 2. Transactional Execution
		// The business mutation and the ledger insert happen atomically. A
		// version conflict from a racing delivery surfaces as a plain error
		// here and gets a fresh read on the next attempt.
		txErr := p.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
			// The pre-check ran once, outside any transaction; a concurrent
			// delivery may have committed since then, or between retry
			// attempts.
			processed, err := p.ledger.IsProcessed(txCtx, env.ID)
			if err != nil {
				return fmt.Errorf("failed to re-check event idempotency: %w", err)
			}
			if processed {
				return domain.ErrEventAlreadyProcessed
			}

			r, err := apply(txCtx, env)
			if err != nil {
				return err
			}
			receipt = r
			if err := p.ledger.MarkProcessed(txCtx, env.ID, env.Type, r.SubjectID, r.Metadata); err != nil {
				return fmt.Errorf("failed to mark event as processed: %w", err)
			}
			return nil
		})

		// Don't retry errors that can never succeed.
		if txErr != nil && (IsDiscard(txErr) || errors.Is(txErr, domain.ErrEventAlreadyProcessed) || errors.Is(txErr, context.Canceled)) {
			return nil, backoff.Permanent(txErr)
		}
		return nil, txErr
	}

	bo := backoff.NewExponentialBackOff()

	_, err = backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(p.maxElapsedTime))
	if err != nil {
		if errors.Is(err, domain.ErrEventAlreadyProcessed) {
			slog.InfoContext(ctx, "Event applied by a concurrent delivery, skipping",
				"eventID", env.ID, "eventType", env.Type)
			return nil
		}
		if IsDiscard(err) {
			slog.WarnContext(ctx, "Event discarded", "error", err, "eventID", env.ID, "eventType", env.Type)
		} else {
			slog.ErrorContext(ctx, "Failed to process event after multiple retries",
				"error", err, "eventID", env.ID, "eventType", env.Type)
		}
		return err
	}

	slog.InfoContext(ctx, "Event processed successfully",
		"eventID", env.ID, "eventType", env.Type, "subjectID", receipt.SubjectID)

	if p.after != nil {
		p.after(ctx, env, receipt)
	}
	return nil
}
