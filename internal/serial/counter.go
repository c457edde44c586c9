// Package serial allocates monotonically increasing numbers per
// (shape, attribute) pair. Counter state travels explicitly through the
// allocation functions together with its optimistic-concurrency token;
// there is no hidden shared state.
package serial

import (
	"fmt"

	"github.com/google/uuid"
)

// Counter is the persisted state of one serial attribute on one shape.
// Token is captured at load time and checked at save time to detect
// concurrent modification; it carries no wall-clock meaning.
type Counter struct {
	ShapeID       uuid.UUID `json:"shapeId"`
	AttributeID   uuid.UUID `json:"attributeId"`
	Next          int64     `json:"next"`
	LastIncrement int64     `json:"lastIncrement"`
	Token         int64     `json:"token"`
}

// Allocate hands out the current next value and advances the counter by the
// given increment
func (c *Counter) Allocate(increment int64) int64 {
	value := c.Next
	c.Next += increment
	c.LastIncrement = increment
	return value
}

// Step reapplies the last increment. Callers use it after reloading a
// counter that lost an optimistic-concurrency race, so their allocation is
// carried over onto the fresh state.
func (c *Counter) Step() {
	c.Next += c.LastIncrement
}

// Key is the item-store key of the counter
func (c *Counter) Key() string {
	return CounterKey(c.ShapeID, c.AttributeID)
}

// CounterKey builds the item-store key for a (shape, attribute) pair
func CounterKey(shapeID, attributeID uuid.UUID) string {
	return fmt.Sprintf("counter:%s:%s", shapeID, attributeID)
}

// SaveResult reports the outcome of persisting a counter
type SaveResult int

const (
	// Saved means the counter was persisted and its token refreshed.
	Saved SaveResult = iota
	// Conflict means another writer saved the counter since it was loaded.
	Conflict
	// Failed means the bounded retry budget was exhausted; the operation
	// that depended on the allocation must be rejected.
	Failed
)

// String returns the string representation of the save result
func (r SaveResult) String() string {
	switch r {
	case Saved:
		return "saved"
	case Conflict:
		return "conflict"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
