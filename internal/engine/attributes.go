package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/store"
)

// CreateAttribute validates and persists an attribute configuration. A
// non-nil Errors return means nothing was persisted.
func (e *Engine) CreateAttribute(ctx context.Context, actor string, cfg *attr.Configuration, tenantID string) (*attr.Errors, error) {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}

	verrs := attr.NewErrors()
	verrs.AddAll(cfg.MachineName, attr.CheckConfiguration(cfg))
	if verrs.HasErrors() {
		return verrs, nil
	}

	if err := store.SaveConfiguration(ctx, e.aggregates, actor, cfg, tenantID); err != nil {
		return nil, err
	}

	e.logger.Debug("attribute configuration saved",
		zap.String("attribute_id", cfg.ID.String()),
		zap.String("machine_name", cfg.MachineName),
		zap.String("kind", cfg.Kind.String()))
	return nil, nil
}

// UpdateAttribute replaces an attribute configuration. The machine name is
// immutable once the configuration exists; shapes reference attributes by
// it.
func (e *Engine) UpdateAttribute(ctx context.Context, actor string, cfg *attr.Configuration, tenantID string) (*attr.Errors, error) {
	stored, err := store.LoadConfiguration(ctx, e.aggregates, cfg.ID, tenantID)
	if err != nil {
		return nil, err
	}

	verrs := attr.NewErrors()
	if stored.MachineName != cfg.MachineName {
		verrs.Add(cfg.MachineName, "machine name is immutable")
	}
	if stored.Kind != cfg.Kind {
		verrs.Add(cfg.MachineName, "attribute kind is immutable")
	}
	verrs.AddAll(cfg.MachineName, attr.CheckConfiguration(cfg))
	if verrs.HasErrors() {
		return verrs, nil
	}

	if err := store.SaveConfiguration(ctx, e.aggregates, actor, cfg, tenantID); err != nil {
		return nil, err
	}
	return nil, nil
}

// GetAttribute loads an attribute configuration
func (e *Engine) GetAttribute(ctx context.Context, id uuid.UUID, tenantID string) (*attr.Configuration, error) {
	return store.LoadConfiguration(ctx, e.aggregates, id, tenantID)
}
