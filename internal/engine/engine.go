// Package engine orchestrates the runtime: it validates and persists
// configuration and instance aggregates, keeps projection documents in sync,
// allocates serial values, and drives category placement through the
// hierarchy cascade. Handlers call the engine; the engine calls the stores.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/hierarchy"
	"github.com/facet-db/facet/internal/serial"
	"github.com/facet-db/facet/internal/store"
)

// ChangeEvent describes one projection write. Events feed the change
// stream; delivery is best-effort and never blocks the write path.
type ChangeEvent struct {
	Kind     string                 `json:"kind"`
	Action   string                 `json:"action"`
	ShapeID  string                 `json:"shapeId"`
	ID       string                 `json:"id"`
	Document map[string]interface{} `json:"document,omitempty"`
}

// Publisher receives change events. The websocket hub implements this.
type Publisher interface {
	Publish(event ChangeEvent)
}

// Options carries the engine's dependencies
type Options struct {
	Aggregates store.AggregateStore
	Documents  store.DocumentStore
	Serials    *serial.Generator
	Hierarchy  *hierarchy.Engine
	Publisher  Publisher
	Logger     *zap.Logger
}

// Engine is the orchestration layer over the stores
type Engine struct {
	aggregates store.AggregateStore
	documents  store.DocumentStore
	serials    *serial.Generator
	hierarchy  *hierarchy.Engine
	publisher  Publisher
	logger     *zap.Logger
}

// New creates an engine from its dependencies. Publisher and Logger are
// optional.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		aggregates: opts.Aggregates,
		documents:  opts.Documents,
		serials:    opts.Serials,
		hierarchy:  opts.Hierarchy,
		publisher:  opts.Publisher,
		logger:     logger,
	}
}

func (e *Engine) publish(event ChangeEvent) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(event)
}

// loadConfigurations resolves a shape's attribute references to their
// configuration aggregates, keyed by machine name.
func (e *Engine) loadConfigurations(ctx context.Context, shape *catalog.Shape, tenantID string) (map[string]*attr.Configuration, error) {
	configs := make(map[string]*attr.Configuration, len(shape.Attributes))
	for _, ref := range shape.Attributes {
		cfg, err := store.LoadConfiguration(ctx, e.aggregates, ref.ConfigurationID, tenantID)
		if err != nil {
			return nil, fmt.Errorf("shape %s: attribute %s: %w", shape.MachineName, ref.MachineName, err)
		}
		configs[ref.MachineName] = cfg
	}
	return configs, nil
}

// orderedConfigurations returns the shape's configurations in declaration
// order
func orderedConfigurations(shape *catalog.Shape, configs map[string]*attr.Configuration) []*attr.Configuration {
	ordered := make([]*attr.Configuration, 0, len(shape.Attributes))
	for _, ref := range shape.Attributes {
		if cfg, ok := configs[ref.MachineName]; ok {
			ordered = append(ordered, cfg)
		}
	}
	return ordered
}

// decodePayload matches a wire payload against the shape's attributes and
// decodes each matched field. Payload fields are matched case-insensitively
// against attribute machine names; unmatched fields are ignored. Decode
// failures accumulate per machine name.
func decodePayload(shape *catalog.Shape, configs map[string]*attr.Configuration, payload map[string]interface{}) (map[string]*attr.Instance, *attr.Errors) {
	decoded := make(map[string]*attr.Instance)
	verrs := attr.NewErrors()

	for field, raw := range payload {
		ref, ok := shape.AttributeFold(field)
		if !ok {
			continue
		}
		cfg, ok := configs[ref.MachineName]
		if !ok {
			continue
		}
		inst, err := attr.DecodeValue(cfg, raw)
		if err != nil {
			verrs.Add(ref.MachineName, err.Error())
			continue
		}
		if inst != nil {
			decoded[ref.MachineName] = inst
		}
	}

	return decoded, verrs
}

// validateAll runs every attribute of the shape against the instance's
// values, accumulating errors so the caller sees the full set at once.
func validateAll(shape *catalog.Shape, configs map[string]*attr.Configuration, in *catalog.Instance, verrs *attr.Errors) {
	for _, ref := range shape.Attributes {
		cfg, ok := configs[ref.MachineName]
		if !ok {
			continue
		}
		if cfg.Kind == attr.KindSerial {
			// Serial values are engine-assigned after validation.
			continue
		}
		verrs.AddAll(ref.MachineName, attr.Validate(cfg, in.Attribute(ref.MachineName), false))
	}
}

// ExternalCounterKey is the key the engine uses to materialize the latest
// allocated serial value on the shape's attribute reference.
const ExternalCounterKey = "lastValue"

// allocateSerials assigns values to the instance's serial attributes and
// materializes the latest value on the shape. Retry exhaustion propagates:
// the enclosing create or update must be rejected.
func (e *Engine) allocateSerials(ctx context.Context, actor string, shape *catalog.Shape, configs map[string]*attr.Configuration, in *catalog.Instance) error {
	touched := false
	for _, ref := range shape.Attributes {
		cfg, ok := configs[ref.MachineName]
		if !ok || cfg.Kind != attr.KindSerial {
			continue
		}
		if existing := in.Attribute(ref.MachineName); existing != nil && existing.Serial != nil {
			// Updates keep the value assigned at creation.
			continue
		}

		value, err := e.serials.Allocate(ctx, shape.ID, cfg)
		if err != nil {
			return fmt.Errorf("allocate %s.%s: %w", shape.MachineName, ref.MachineName, err)
		}
		in.SetAttribute(&attr.Instance{
			Kind:        attr.KindSerial,
			MachineName: ref.MachineName,
			Serial:      &value,
		})
		shape.SetExternal(ref.MachineName, ExternalCounterKey, value)
		touched = true
	}

	if touched {
		if err := store.SaveShape(ctx, e.aggregates, actor, shape); err != nil {
			return fmt.Errorf("materialize counter on shape %s: %w", shape.MachineName, err)
		}
	}
	return nil
}
