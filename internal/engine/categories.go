package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
)

// CreateTree validates and persists a category tree and prepares the
// hierarchical document index for its shape.
func (e *Engine) CreateTree(ctx context.Context, actor string, tree *catalog.Tree) (*attr.Errors, error) {
	if tree.ID == uuid.Nil {
		tree.ID = uuid.New()
	}

	verrs := attr.NewErrors()
	if tree.MachineName == "" {
		verrs.Add(shapeField, "tree machine name must not be empty")
	}

	shape, err := store.LoadShape(ctx, e.aggregates, tree.ShapeID, tree.TenantID)
	if err != nil {
		return nil, err
	}
	if verrs.HasErrors() {
		return verrs, nil
	}

	configs, err := e.loadConfigurations(ctx, shape, tree.TenantID)
	if err != nil {
		return nil, err
	}
	ordered := orderedConfigurations(shape, configs)
	schema, err := projection.Synthesize(shape.MachineName, ordered, ordered, true)
	if err != nil {
		return nil, err
	}

	if err := store.SaveTree(ctx, e.aggregates, actor, tree); err != nil {
		return nil, err
	}
	if err := e.documents.EnsureIndex(ctx, schema); err != nil {
		return nil, err
	}

	e.logger.Info("tree created",
		zap.String("tree_id", tree.ID.String()),
		zap.String("machine_name", tree.MachineName),
		zap.String("shape_id", tree.ShapeID.String()))
	return nil, nil
}

// GetTree loads a category tree aggregate
func (e *Engine) GetTree(ctx context.Context, id uuid.UUID, tenantID string) (*catalog.Tree, error) {
	return store.LoadTree(ctx, e.aggregates, id, tenantID)
}

// CreateCategory decodes and validates a payload against the tree's shape,
// persists the category, and places it under the given parent. Placement
// writes the projection document, inherited values included.
func (e *Engine) CreateCategory(ctx context.Context, actor string, treeID uuid.UUID, tenantID, machineName string, parentID uuid.UUID, payload map[string]interface{}) (*catalog.Category, *attr.Errors, error) {
	tree, err := store.LoadTree(ctx, e.aggregates, treeID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	shape, err := store.LoadShape(ctx, e.aggregates, tree.ShapeID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	configs, err := e.loadConfigurations(ctx, shape, tenantID)
	if err != nil {
		return nil, nil, err
	}

	decoded, verrs := decodePayload(shape, configs, payload)
	if machineName == "" {
		verrs.Add("machineName", "category machine name must not be empty")
	}

	cat := &catalog.Category{
		Instance:    *catalog.NewInstance(shape.ID, tenantID),
		MachineName: machineName,
	}
	for _, ref := range shape.Attributes {
		cat.SetAttribute(decoded[ref.MachineName])
	}

	validateAll(shape, configs, &cat.Instance, verrs)
	if verrs.HasErrors() {
		return nil, verrs, nil
	}

	if err := e.allocateSerials(ctx, actor, shape, configs, &cat.Instance); err != nil {
		return nil, nil, err
	}
	if err := store.SaveCategory(ctx, e.aggregates, actor, cat); err != nil {
		return nil, nil, err
	}
	if err := e.hierarchy.Place(ctx, actor, treeID, cat.ID, parentID, tenantID); err != nil {
		return nil, nil, err
	}

	// Placement rewrote the aggregate with its path; return the placed state.
	placed, err := store.LoadCategory(ctx, e.aggregates, cat.ID, tree.ShapeID)
	if err != nil {
		return nil, nil, err
	}

	e.publish(ChangeEvent{Kind: "category", Action: "created", ShapeID: shape.ID.String(), ID: cat.ID.String()})
	return placed, nil, nil
}

// UpdateCategory applies a partial payload onto a stored category and
// rewrites its own projection. Paths and descendants are untouched; moving
// is a separate operation.
func (e *Engine) UpdateCategory(ctx context.Context, actor string, treeID, categoryID uuid.UUID, tenantID string, payload map[string]interface{}) (*catalog.Category, *attr.Errors, error) {
	tree, err := store.LoadTree(ctx, e.aggregates, treeID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	shape, err := store.LoadShape(ctx, e.aggregates, tree.ShapeID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	configs, err := e.loadConfigurations(ctx, shape, tenantID)
	if err != nil {
		return nil, nil, err
	}
	cat, err := store.LoadCategory(ctx, e.aggregates, categoryID, tree.ShapeID)
	if err != nil {
		return nil, nil, err
	}

	decoded, verrs := decodePayload(shape, configs, payload)
	for _, ref := range shape.Attributes {
		cat.SetAttribute(decoded[ref.MachineName])
	}

	validateAll(shape, configs, &cat.Instance, verrs)
	if verrs.HasErrors() {
		return nil, verrs, nil
	}

	if err := e.allocateSerials(ctx, actor, shape, configs, &cat.Instance); err != nil {
		return nil, nil, err
	}
	if err := store.SaveCategory(ctx, e.aggregates, actor, cat); err != nil {
		return nil, nil, err
	}
	if err := e.hierarchy.Refresh(ctx, treeID, categoryID, tenantID); err != nil {
		return nil, nil, err
	}

	e.publish(ChangeEvent{Kind: "category", Action: "updated", ShapeID: shape.ID.String(), ID: cat.ID.String()})
	return cat, nil, nil
}

// MoveCategory re-parents a category and cascades the path and inheritance
// rewrite over its descendants. Any failure aborts the cascade and
// propagates.
func (e *Engine) MoveCategory(ctx context.Context, actor string, treeID, categoryID, newParentID uuid.UUID, tenantID string) error {
	if err := e.hierarchy.Move(ctx, actor, treeID, categoryID, newParentID, tenantID); err != nil {
		return err
	}
	e.publish(ChangeEvent{Kind: "category", Action: "moved", ID: categoryID.String()})
	return nil
}

// GetCategory loads a category aggregate through its tree
func (e *Engine) GetCategory(ctx context.Context, treeID, categoryID uuid.UUID, tenantID string) (*catalog.Category, error) {
	tree, err := store.LoadTree(ctx, e.aggregates, treeID, tenantID)
	if err != nil {
		return nil, err
	}
	return store.LoadCategory(ctx, e.aggregates, categoryID, tree.ShapeID)
}

// QueryCategories runs a filter over a tree's projection documents
func (e *Engine) QueryCategories(ctx context.Context, treeID uuid.UUID, tenantID string, filter store.Filter) (*store.Page, error) {
	tree, err := store.LoadTree(ctx, e.aggregates, treeID, tenantID)
	if err != nil {
		return nil, err
	}
	shape, err := store.LoadShape(ctx, e.aggregates, tree.ShapeID, tenantID)
	if err != nil {
		return nil, err
	}
	configs, err := e.loadConfigurations(ctx, shape, tenantID)
	if err != nil {
		return nil, err
	}
	ordered := orderedConfigurations(shape, configs)
	schema, err := projection.Synthesize(shape.MachineName, ordered, ordered, true)
	if err != nil {
		return nil, err
	}
	return e.documents.Query(ctx, schema, filter)
}
