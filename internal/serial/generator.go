package serial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/store"
)

// DefaultMaxAttempts bounds the save-conflict retry loop
const DefaultMaxAttempts = 5

// ErrExhausted is returned when the retry budget runs out. The enclosing
// create/update must be rejected; a counter step is never silently lost.
var ErrExhausted = errors.New("serial: save conflict retries exhausted")

// ErrNotMonotonic is returned when a manual counter update does not move
// the counter forward
var ErrNotMonotonic = errors.New("serial: next value must exceed the stored value")

// Generator creates, loads, and advances counters against the item store
type Generator struct {
	items       store.ItemStore
	maxAttempts int
	logger      *zap.Logger

	// now is swappable for deterministic tokens in tests.
	now func() int64
}

// NewGenerator creates a generator with the given retry budget; a
// non-positive budget falls back to DefaultMaxAttempts
func NewGenerator(items store.ItemStore, maxAttempts int, logger *zap.Logger) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		items:       items,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         func() int64 { return time.Now().UnixNano() },
	}
}

// Create initializes the counter for a serial attribute. It is idempotent:
// when the counter already exists it returns nil without touching it.
func (g *Generator) Create(ctx context.Context, shapeID uuid.UUID, cfg *attr.Configuration) (*Counter, error) {
	existing, err := g.Load(ctx, shapeID, cfg.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	counter := &Counter{
		ShapeID:       shapeID,
		AttributeID:   cfg.ID,
		Next:          cfg.StartingNumber,
		LastIncrement: cfg.Increment,
		Token:         g.now(),
	}
	if err := g.items.UpsertItem(ctx, counter.Key(), shapeID.String(), counter); err != nil {
		return nil, fmt.Errorf("serial: create counter: %w", err)
	}
	return counter, nil
}

// Load returns the counter for a (shape, attribute) pair, or nil when it
// was never created
func (g *Generator) Load(ctx context.Context, shapeID, attributeID uuid.UUID) (*Counter, error) {
	var counter Counter
	err := g.items.LoadItem(ctx, CounterKey(shapeID, attributeID), shapeID.String(), &counter)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("serial: load counter: %w", err)
	}
	return &counter, nil
}

// Save persists a counter previously obtained from Load or Create. The
// counter's token must still match the stored one; a mismatch reports
// Conflict and leaves the stored state untouched. On success the token is
// refreshed in place.
func (g *Generator) Save(ctx context.Context, counter *Counter) (SaveResult, error) {
	var stored Counter
	err := g.items.LoadItem(ctx, counter.Key(), counter.ShapeID.String(), &stored)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Failed, fmt.Errorf("serial: save counter: %w", err)
	}
	if err == nil && stored.Token != counter.Token {
		return Conflict, nil
	}

	counter.Token = g.now()
	if err := g.items.UpsertItem(ctx, counter.Key(), counter.ShapeID.String(), counter); err != nil {
		return Failed, fmt.Errorf("serial: save counter: %w", err)
	}
	return Saved, nil
}

// Allocate hands out the next value for a serial attribute, creating the
// counter on first use. Conflicting saves are retried by reloading and
// stepping the fresh counter, bounded by the configured attempt budget.
func (g *Generator) Allocate(ctx context.Context, shapeID uuid.UUID, cfg *attr.Configuration) (int64, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		counter, err := g.Load(ctx, shapeID, cfg.ID)
		if err != nil {
			return 0, err
		}
		if counter == nil {
			if counter, err = g.Create(ctx, shapeID, cfg); err != nil {
				return 0, err
			}
			if counter == nil {
				// Lost the creation race; reload on the next attempt.
				continue
			}
		}

		value := counter.Allocate(cfg.Increment)

		result, err := g.Save(ctx, counter)
		if err != nil {
			return 0, err
		}
		switch result {
		case Saved:
			return value, nil
		case Conflict:
			g.logger.Debug("serial counter save conflict",
				zap.String("shape_id", shapeID.String()),
				zap.String("attribute_id", cfg.ID.String()),
				zap.Int("attempt", attempt))
		}
	}

	return 0, ErrExhausted
}

// SetNext applies a manual counter update. The supplied value must exceed
// the stored next value; anything else violates monotonicity and is
// rejected.
func (g *Generator) SetNext(ctx context.Context, shapeID, attributeID uuid.UUID, next int64) error {
	counter, err := g.Load(ctx, shapeID, attributeID)
	if err != nil {
		return err
	}
	if counter == nil {
		return fmt.Errorf("serial: counter for attribute %s: %w", attributeID, store.ErrNotFound)
	}
	if next <= counter.Next {
		return fmt.Errorf("%w: stored %d, supplied %d", ErrNotMonotonic, counter.Next, next)
	}

	counter.Next = next
	result, err := g.Save(ctx, counter)
	if err != nil {
		return err
	}
	if result != Saved {
		return fmt.Errorf("serial: manual update lost a concurrent race, retry")
	}
	return nil
}
