package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
)

// shapeField keys shape-level validation problems in the error map,
// alongside the attribute machine names.
const shapeField = "shape"

// CreateShape validates and persists an entity configuration, synthesizes
// its projection schema, and prepares the document index. Serial attributes
// get their counters created here so the first instance never races
// counter initialization.
func (e *Engine) CreateShape(ctx context.Context, actor string, shape *catalog.Shape) (*attr.Errors, error) {
	if shape.ID == uuid.Nil {
		shape.ID = uuid.New()
	}
	return e.saveShape(ctx, actor, shape, false)
}

// UpdateShape replaces an entity configuration. The machine name is
// immutable: projection documents are filed under it.
func (e *Engine) UpdateShape(ctx context.Context, actor string, shape *catalog.Shape) (*attr.Errors, error) {
	stored, err := store.LoadShape(ctx, e.aggregates, shape.ID, shape.TenantID)
	if err != nil {
		return nil, err
	}
	if stored.MachineName != shape.MachineName {
		verrs := attr.NewErrors()
		verrs.Add(shapeField, "machine name is immutable")
		return verrs, nil
	}
	return e.saveShape(ctx, actor, shape, true)
}

func (e *Engine) saveShape(ctx context.Context, actor string, shape *catalog.Shape, update bool) (*attr.Errors, error) {
	verrs := attr.NewErrors()
	verrs.AddAll(shapeField, catalog.CheckShape(shape))

	configs := make(map[string]*attr.Configuration, len(shape.Attributes))
	for _, ref := range shape.Attributes {
		cfg, err := store.LoadConfiguration(ctx, e.aggregates, ref.ConfigurationID, shape.TenantID)
		if errors.Is(err, store.ErrNotFound) {
			verrs.Add(ref.MachineName, "references an unknown attribute configuration")
			continue
		}
		if err != nil {
			return nil, err
		}
		if cfg.MachineName != ref.MachineName {
			verrs.Add(ref.MachineName, fmt.Sprintf("configuration %s is named %q", cfg.ID, cfg.MachineName))
			continue
		}
		configs[ref.MachineName] = cfg
	}
	if verrs.HasErrors() {
		return verrs, nil
	}

	schema, err := projection.Synthesize(shape.MachineName, orderedConfigurations(shape, configs), nil, false)
	if err != nil {
		return nil, err
	}

	for _, cfg := range configs {
		if cfg.Kind != attr.KindSerial {
			continue
		}
		counter, err := e.serials.Create(ctx, shape.ID, cfg)
		if err != nil {
			return nil, err
		}
		if counter != nil {
			shape.SetExternal(cfg.MachineName, ExternalCounterKey, counter.Next)
		}
	}

	if err := store.SaveShape(ctx, e.aggregates, actor, shape); err != nil {
		return nil, err
	}
	if err := e.documents.EnsureIndex(ctx, schema); err != nil {
		return nil, err
	}

	action := "created"
	if update {
		action = "updated"
	}
	e.logger.Info("shape saved",
		zap.String("shape_id", shape.ID.String()),
		zap.String("machine_name", shape.MachineName),
		zap.String("action", action))
	e.publish(ChangeEvent{Kind: "shape", Action: action, ShapeID: shape.ID.String(), ID: shape.ID.String()})
	return nil, nil
}

// GetShape loads an entity configuration
func (e *Engine) GetShape(ctx context.Context, id uuid.UUID, tenantID string) (*catalog.Shape, error) {
	return store.LoadShape(ctx, e.aggregates, id, tenantID)
}

// Schema synthesizes the current projection schema of a shape
func (e *Engine) Schema(ctx context.Context, shapeID uuid.UUID, tenantID string) (*projection.DocumentSchema, error) {
	shape, err := store.LoadShape(ctx, e.aggregates, shapeID, tenantID)
	if err != nil {
		return nil, err
	}
	configs, err := e.loadConfigurations(ctx, shape, tenantID)
	if err != nil {
		return nil, err
	}
	return projection.Synthesize(shape.MachineName, orderedConfigurations(shape, configs), nil, false)
}
