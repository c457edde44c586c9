package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
)

// Typed wrappers over the opaque AggregateStore. Partition keys are derived
// here so every caller addresses an aggregate the same way: configuration
// aggregates partition by tenant, instances and categories by their shape.

// TenantPartition is the partition key for tenant-scoped configuration
// aggregates; an empty tenant id maps to the default partition.
func TenantPartition(tenantID string) string {
	if tenantID == "" {
		return "default"
	}
	return tenantID
}

// ShapePartition is the partition key for instances of a shape
func ShapePartition(shapeID uuid.UUID) string {
	return shapeID.String()
}

func load(ctx context.Context, s AggregateStore, kind string, id uuid.UUID, partition string, out interface{}) error {
	payload, err := s.LoadAggregate(ctx, kind, id, partition)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("unmarshal %s %s: %w", kind, id, err)
	}
	return nil
}

func save(ctx context.Context, s AggregateStore, actor, kind string, id uuid.UUID, partition string, in interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", kind, id, err)
	}
	return s.SaveAggregate(ctx, actor, kind, id, partition, payload)
}

// LoadShape loads an entity configuration aggregate
func LoadShape(ctx context.Context, s AggregateStore, id uuid.UUID, tenantID string) (*catalog.Shape, error) {
	var shape catalog.Shape
	if err := load(ctx, s, AggregateShape, id, TenantPartition(tenantID), &shape); err != nil {
		return nil, err
	}
	return &shape, nil
}

// SaveShape persists an entity configuration aggregate
func SaveShape(ctx context.Context, s AggregateStore, actor string, shape *catalog.Shape) error {
	return save(ctx, s, actor, AggregateShape, shape.ID, TenantPartition(shape.TenantID), shape)
}

// LoadConfiguration loads an attribute configuration aggregate
func LoadConfiguration(ctx context.Context, s AggregateStore, id uuid.UUID, tenantID string) (*attr.Configuration, error) {
	var cfg attr.Configuration
	if err := load(ctx, s, AggregateAttribute, id, TenantPartition(tenantID), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfiguration persists an attribute configuration aggregate
func SaveConfiguration(ctx context.Context, s AggregateStore, actor string, cfg *attr.Configuration, tenantID string) error {
	return save(ctx, s, actor, AggregateAttribute, cfg.ID, TenantPartition(tenantID), cfg)
}

// LoadInstance loads an entity instance aggregate
func LoadInstance(ctx context.Context, s AggregateStore, id, shapeID uuid.UUID) (*catalog.Instance, error) {
	var in catalog.Instance
	if err := load(ctx, s, AggregateInstance, id, ShapePartition(shapeID), &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// SaveInstance persists an entity instance aggregate
func SaveInstance(ctx context.Context, s AggregateStore, actor string, in *catalog.Instance) error {
	return save(ctx, s, actor, AggregateInstance, in.ID, ShapePartition(in.ShapeID), in)
}

// LoadCategory loads a category aggregate
func LoadCategory(ctx context.Context, s AggregateStore, id, shapeID uuid.UUID) (*catalog.Category, error) {
	var c catalog.Category
	if err := load(ctx, s, AggregateCategory, id, ShapePartition(shapeID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCategory persists a category aggregate
func SaveCategory(ctx context.Context, s AggregateStore, actor string, c *catalog.Category) error {
	return save(ctx, s, actor, AggregateCategory, c.ID, ShapePartition(c.ShapeID), c)
}

// LoadTree loads a category tree aggregate
func LoadTree(ctx context.Context, s AggregateStore, id uuid.UUID, tenantID string) (*catalog.Tree, error) {
	var tree catalog.Tree
	if err := load(ctx, s, AggregateTree, id, TenantPartition(tenantID), &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// SaveTree persists a category tree aggregate
func SaveTree(ctx context.Context, s AggregateStore, actor string, tree *catalog.Tree) error {
	return save(ctx, s, actor, AggregateTree, tree.ID, TenantPartition(tree.TenantID), tree)
}
