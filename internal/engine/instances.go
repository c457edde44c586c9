package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
)

// CreateInstance decodes and validates a wire payload against the shape,
// allocates serial values, and persists the aggregate plus its projection
// document. Validation failures return the full machine-name-keyed error
// set and persist nothing.
func (e *Engine) CreateInstance(ctx context.Context, actor string, shapeID uuid.UUID, tenantID string, payload map[string]interface{}) (*catalog.Instance, *attr.Errors, error) {
	shape, err := store.LoadShape(ctx, e.aggregates, shapeID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	configs, err := e.loadConfigurations(ctx, shape, tenantID)
	if err != nil {
		return nil, nil, err
	}

	decoded, verrs := decodePayload(shape, configs, payload)
	in := catalog.NewInstance(shape.ID, tenantID)
	for _, ref := range shape.Attributes {
		in.SetAttribute(decoded[ref.MachineName])
	}

	validateAll(shape, configs, in, verrs)
	if verrs.HasErrors() {
		return nil, verrs, nil
	}

	if err := e.allocateSerials(ctx, actor, shape, configs, in); err != nil {
		return nil, nil, err
	}
	if err := store.SaveInstance(ctx, e.aggregates, actor, in); err != nil {
		return nil, nil, err
	}
	if err := e.projectInstance(ctx, shape, configs, in, "created"); err != nil {
		return nil, nil, err
	}
	return in, nil, nil
}

// UpdateInstance applies a partial wire payload onto a stored instance.
// Decoded values replace stored ones per machine name; attributes the
// payload does not mention keep their stored values. The merged instance is
// validated in full before anything is written.
func (e *Engine) UpdateInstance(ctx context.Context, actor string, shapeID, id uuid.UUID, tenantID string, payload map[string]interface{}) (*catalog.Instance, *attr.Errors, error) {
	shape, err := store.LoadShape(ctx, e.aggregates, shapeID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	configs, err := e.loadConfigurations(ctx, shape, tenantID)
	if err != nil {
		return nil, nil, err
	}
	in, err := store.LoadInstance(ctx, e.aggregates, id, shape.ID)
	if err != nil {
		return nil, nil, err
	}

	decoded, verrs := decodePayload(shape, configs, payload)
	for _, ref := range shape.Attributes {
		in.SetAttribute(decoded[ref.MachineName])
	}

	validateAll(shape, configs, in, verrs)
	if verrs.HasErrors() {
		return nil, verrs, nil
	}

	if err := e.allocateSerials(ctx, actor, shape, configs, in); err != nil {
		return nil, nil, err
	}
	if err := store.SaveInstance(ctx, e.aggregates, actor, in); err != nil {
		return nil, nil, err
	}
	if err := e.projectInstance(ctx, shape, configs, in, "updated"); err != nil {
		return nil, nil, err
	}
	return in, nil, nil
}

// GetInstance loads an instance aggregate
func (e *Engine) GetInstance(ctx context.Context, shapeID, id uuid.UUID) (*catalog.Instance, error) {
	return store.LoadInstance(ctx, e.aggregates, id, shapeID)
}

// QueryInstances runs a filter over the shape's projection documents
func (e *Engine) QueryInstances(ctx context.Context, shapeID uuid.UUID, tenantID string, filter store.Filter) (*store.Page, error) {
	schema, err := e.Schema(ctx, shapeID, tenantID)
	if err != nil {
		return nil, err
	}
	return e.documents.Query(ctx, schema, filter)
}

// projectInstance rewrites the instance's projection document and emits the
// change event
func (e *Engine) projectInstance(ctx context.Context, shape *catalog.Shape, configs map[string]*attr.Configuration, in *catalog.Instance, action string) error {
	schema, err := projection.Synthesize(shape.MachineName, orderedConfigurations(shape, configs), nil, false)
	if err != nil {
		return err
	}

	doc := projection.Flatten(in, "", nil)
	if err := e.documents.Upsert(ctx, schema, doc, store.ShapePartition(shape.ID), time.Now().UTC()); err != nil {
		return err
	}

	e.logger.Debug("instance projected",
		zap.String("shape", shape.MachineName),
		zap.String("instance_id", in.ID.String()),
		zap.String("action", action))
	e.publish(ChangeEvent{
		Kind:     "instance",
		Action:   action,
		ShapeID:  shape.ID.String(),
		ID:       in.ID.String(),
		Document: doc,
	})
	return nil
}
