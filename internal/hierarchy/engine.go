package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
)

// ErrCycle is returned when a move would place a category below itself
var ErrCycle = errors.New("hierarchy: cannot move a category below itself")

// Engine reconciles category aggregates and their projection documents
// after placements and moves
type Engine struct {
	aggregates store.AggregateStore
	documents  store.DocumentStore
	policy     ConflictPolicy
	logger     *zap.Logger
}

// New creates an engine writing through the given stores
func New(aggregates store.AggregateStore, documents store.DocumentStore, policy ConflictPolicy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		aggregates: aggregates,
		documents:  documents,
		policy:     policy,
		logger:     logger,
	}
}

// Place assigns a category its initial placement in a tree and writes its
// projection. A freshly placed category has no descendants, so nothing
// cascades.
func (e *Engine) Place(ctx context.Context, actor string, treeID, categoryID, parentID uuid.UUID, tenantID string) error {
	c, err := e.begin(ctx, treeID, tenantID)
	if err != nil {
		return err
	}

	cat, err := c.category(ctx, categoryID)
	if err != nil {
		return err
	}

	parentPath, parentName, err := c.parentPlacement(ctx, parentID)
	if err != nil {
		return err
	}

	cat.SetPath(catalog.CategoryPath{
		TreeID:            treeID,
		Path:              catalog.ChildPath(parentPath, categoryID.String()),
		ParentID:          parentID,
		ParentMachineName: parentName,
	})
	if err := store.SaveCategory(ctx, e.aggregates, actor, cat); err != nil {
		return err
	}
	return c.project(ctx, cat)
}

// Refresh rewrites a single category's projection in place, without
// touching its path or descendants. It covers attribute edits that leave
// the placement alone.
func (e *Engine) Refresh(ctx context.Context, treeID, categoryID uuid.UUID, tenantID string) error {
	c, err := e.begin(ctx, treeID, tenantID)
	if err != nil {
		return err
	}
	cat, err := c.category(ctx, categoryID)
	if err != nil {
		return err
	}
	return c.project(ctx, cat)
}

// Move re-parents a category and reconciles every descendant: paths are
// rebased onto the new location and inherited attribute sets recomputed
// from the new ancestor chain. The worklist runs depth-first and a parent
// is always written before its children. Any lookup or write failure aborts
// the cascade.
func (e *Engine) Move(ctx context.Context, actor string, treeID, categoryID, newParentID uuid.UUID, tenantID string) error {
	c, err := e.begin(ctx, treeID, tenantID)
	if err != nil {
		return err
	}

	cat, err := c.category(ctx, categoryID)
	if err != nil {
		return err
	}
	current, placed := cat.PathInTree(treeID)
	if !placed {
		return e.Place(ctx, actor, treeID, categoryID, newParentID, tenantID)
	}

	parentPath, parentName, err := c.parentPlacement(ctx, newParentID)
	if err != nil {
		return err
	}
	newPath := catalog.ChildPath(parentPath, categoryID.String())
	if newPath == current.Path {
		return c.project(ctx, cat)
	}
	if parentPath == current.Path || catalog.IsDescendantPath(parentPath, current.Path) {
		return fmt.Errorf("%w: %s under %s", ErrCycle, current.Path, parentPath)
	}

	added, removed := AncestorDiff(current.Path, newPath)
	e.logger.Debug("moving category",
		zap.String("category_id", categoryID.String()),
		zap.String("old_path", current.Path),
		zap.String("new_path", newPath),
		zap.Int("ancestors_added", len(added)),
		zap.Int("ancestors_removed", len(removed)))

	worklist := []step{{
		id:                categoryID,
		oldPath:           current.Path,
		newPath:           newPath,
		parentID:          newParentID,
		parentMachineName: parentName,
	}}
	steps := 0

	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		item := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		steps++

		node, err := c.category(ctx, item.id)
		if err != nil {
			return fmt.Errorf("hierarchy: cascade aborted at %s: %w", item.oldPath, err)
		}

		node.SetPath(catalog.CategoryPath{
			TreeID:            treeID,
			Path:              item.newPath,
			ParentID:          item.parentID,
			ParentMachineName: item.parentMachineName,
		})
		if err := store.SaveCategory(ctx, e.aggregates, actor, node); err != nil {
			return fmt.Errorf("hierarchy: cascade aborted at %s: %w", item.newPath, err)
		}
		if err := c.project(ctx, node); err != nil {
			return fmt.Errorf("hierarchy: cascade aborted at %s: %w", item.newPath, err)
		}

		children, err := e.documents.Query(ctx, c.schema, store.Filter{
			Equals: map[string]interface{}{projection.KeyFieldParent: item.id.String()},
		})
		if err != nil {
			return fmt.Errorf("hierarchy: cascade aborted at %s: %w", item.newPath, err)
		}
		for _, doc := range children.Items {
			child, err := childStep(doc, item, node.MachineName)
			if err != nil {
				return fmt.Errorf("hierarchy: cascade aborted at %s: %w", item.newPath, err)
			}
			worklist = append(worklist, child)
		}
	}

	e.logger.Info("category moved",
		zap.String("category_id", categoryID.String()),
		zap.String("new_path", newPath),
		zap.Int("categories_rewritten", steps))
	return nil
}

// step is one pending rewrite in the cascade worklist
type step struct {
	id                uuid.UUID
	oldPath           string
	newPath           string
	parentID          uuid.UUID
	parentMachineName string
}

// childStep derives the worklist entry for a direct child found in the
// projection store. The child's stored path must still lie under the
// parent's old path; anything else means the projection disagrees with the
// aggregate and the cascade must not continue.
func childStep(doc map[string]interface{}, parent step, parentMachineName string) (step, error) {
	rawID, _ := doc[projection.KeyFieldID].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return step{}, fmt.Errorf("child document has invalid id %q", rawID)
	}

	oldPath, _ := doc[projection.KeyFieldPath].(string)
	newPath, ok := catalog.RebasePath(oldPath, parent.oldPath, parent.newPath)
	if !ok || oldPath == parent.oldPath {
		return step{}, fmt.Errorf("child %s path %q is not under %q", id, oldPath, parent.oldPath)
	}

	return step{
		id:                id,
		oldPath:           oldPath,
		newPath:           newPath,
		parentID:          parent.id,
		parentMachineName: parentMachineName,
	}, nil
}

// cascade carries the per-operation caches: the tree, its shape and
// attribute configurations, the synthesized schema, and every category
// loaded so far.
type cascade struct {
	engine *Engine
	tree   *catalog.Tree
	tenant string
	shape  *catalog.Shape
	schema *projection.DocumentSchema

	categories map[uuid.UUID]*catalog.Category
}

func (e *Engine) begin(ctx context.Context, treeID uuid.UUID, tenantID string) (*cascade, error) {
	tree, err := store.LoadTree(ctx, e.aggregates, treeID, tenantID)
	if err != nil {
		return nil, err
	}
	shape, err := store.LoadShape(ctx, e.aggregates, tree.ShapeID, tenantID)
	if err != nil {
		return nil, err
	}

	configs := make([]*attr.Configuration, 0, len(shape.Attributes))
	for _, ref := range shape.Attributes {
		cfg, err := store.LoadConfiguration(ctx, e.aggregates, ref.ConfigurationID, tenantID)
		if err != nil {
			return nil, fmt.Errorf("shape %s: %w", shape.MachineName, err)
		}
		configs = append(configs, cfg)
	}

	// Every category in the tree shares the shape, so the inherited group
	// mirrors the shape's own attribute set.
	schema, err := projection.Synthesize(shape.MachineName, configs, configs, true)
	if err != nil {
		return nil, err
	}

	return &cascade{
		engine:     e,
		tree:       tree,
		tenant:     tenantID,
		shape:      shape,
		schema:     schema,
		categories: make(map[uuid.UUID]*catalog.Category),
	}, nil
}

// category loads a category through the per-operation cache. A cache hit
// returns the same pointer a previous step mutated, so path updates made
// earlier in the cascade stay visible.
func (c *cascade) category(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	if cat, ok := c.categories[id]; ok {
		return cat, nil
	}
	cat, err := store.LoadCategory(ctx, c.engine.aggregates, id, c.tree.ShapeID)
	if err != nil {
		return nil, err
	}
	c.categories[id] = cat
	return cat, nil
}

// parentPlacement resolves the path and machine name of the new parent. A
// nil parent id places the category at the root.
func (c *cascade) parentPlacement(ctx context.Context, parentID uuid.UUID) (string, string, error) {
	if parentID == uuid.Nil {
		return "", "", nil
	}
	parent, err := c.category(ctx, parentID)
	if err != nil {
		return "", "", err
	}
	placement, ok := parent.PathInTree(c.tree.ID)
	if !ok {
		return "", "", fmt.Errorf("hierarchy: parent category %s is not placed in tree %s", parentID, c.tree.MachineName)
	}
	return placement.Path, parent.MachineName, nil
}

// inherited merges the attribute values of the ancestor chain, walking from
// the root down so the conflict policy decides which level's value survives
// for a shared machine name.
func (c *cascade) inherited(ctx context.Context, path string) (map[string]*attr.Instance, error) {
	merged := make(map[string]*attr.Instance)
	for _, raw := range catalog.PathSegments(catalog.ParentPath(path)) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("hierarchy: path %q has invalid segment %q", path, raw)
		}
		ancestor, err := c.category(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, a := range ancestor.Attributes {
			if a == nil {
				continue
			}
			if c.engine.policy == PolicyRootWins {
				if _, taken := merged[a.MachineName]; taken {
					continue
				}
			}
			merged[a.MachineName] = a
		}
	}
	return merged, nil
}

// project rewrites the category's projection document from its current
// placement and the recomputed inherited set
func (c *cascade) project(ctx context.Context, cat *catalog.Category) error {
	placement, placed := cat.PathInTree(c.tree.ID)
	if !placed {
		return fmt.Errorf("hierarchy: category %s is not placed in tree %s", cat.ID, c.tree.MachineName)
	}

	inherited, err := c.inherited(ctx, placement.Path)
	if err != nil {
		return err
	}

	doc := projection.Flatten(&cat.Instance, placement.Path, inherited)
	if placement.ParentID != uuid.Nil {
		doc[projection.KeyFieldParent] = placement.ParentID.String()
	}
	return c.engine.documents.Upsert(ctx, c.schema, doc, store.ShapePartition(c.tree.ShapeID), time.Now().UTC())
}
