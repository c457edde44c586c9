package hierarchy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
	"github.com/facet-db/facet/internal/store/memory"
)

func textConfig(name string) *attr.Configuration {
	return &attr.Configuration{
		ID:          uuid.New(),
		Kind:        attr.KindText,
		MachineName: name,
		Name:        attr.NewLocalizedString(name),
	}
}

func textValue(name, value string) *attr.Instance {
	return &attr.Instance{Kind: attr.KindText, MachineName: name, Text: value}
}

type fixture struct {
	t          *testing.T
	aggregates *memory.AggregateStore
	documents  *memory.DocumentStore
	engine     *Engine
	tree       *catalog.Tree
	schema     *projection.DocumentSchema
}

func newFixture(t *testing.T, policy ConflictPolicy) *fixture {
	t.Helper()
	ctx := context.Background()
	aggregates := memory.NewAggregateStore()
	documents := memory.NewDocumentStore()

	shape := &catalog.Shape{ID: uuid.New(), MachineName: "category", Name: attr.NewLocalizedString("Category")}
	for _, name := range []string{"warranty", "supplier", "voltage"} {
		cfg := textConfig(name)
		require.NoError(t, store.SaveConfiguration(ctx, aggregates, "tester", cfg, ""))
		shape.Attributes = append(shape.Attributes, catalog.AttributeReference{
			ConfigurationID: cfg.ID,
			MachineName:     cfg.MachineName,
		})
	}
	require.NoError(t, store.SaveShape(ctx, aggregates, "tester", shape))

	tree := &catalog.Tree{ID: uuid.New(), MachineName: "products", ShapeID: shape.ID}
	require.NoError(t, store.SaveTree(ctx, aggregates, "tester", tree))

	return &fixture{
		t:          t,
		aggregates: aggregates,
		documents:  documents,
		engine:     New(aggregates, documents, policy, zap.NewNop()),
		tree:       tree,
		schema:     &projection.DocumentSchema{Name: "category"},
	}
}

func (f *fixture) category(machineName string, values ...*attr.Instance) *catalog.Category {
	f.t.Helper()
	cat := &catalog.Category{
		Instance:    catalog.Instance{ID: uuid.New(), ShapeID: f.tree.ShapeID},
		MachineName: machineName,
	}
	cat.Attributes = append(cat.Attributes, values...)
	require.NoError(f.t, store.SaveCategory(context.Background(), f.aggregates, "tester", cat))
	return cat
}

func (f *fixture) place(cat *catalog.Category, parentID uuid.UUID) {
	f.t.Helper()
	require.NoError(f.t, f.engine.Place(context.Background(), "tester", f.tree.ID, cat.ID, parentID, ""))
}

func (f *fixture) doc(id uuid.UUID) map[string]interface{} {
	f.t.Helper()
	doc, err := f.documents.Load(context.Background(), f.schema, id.String(), "")
	require.NoError(f.t, err)
	return doc
}

func (f *fixture) reload(id uuid.UUID) *catalog.Category {
	f.t.Helper()
	cat, err := store.LoadCategory(context.Background(), f.aggregates, id, f.tree.ShapeID)
	require.NoError(f.t, err)
	return cat
}

func inheritedGroup(t *testing.T, doc map[string]interface{}) map[string]interface{} {
	t.Helper()
	group, _ := doc[projection.InheritedGroup].(map[string]interface{})
	return group
}

func TestPlaceComputesPathAndInheritance(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops", textValue("warranty", "24 months"))
	f.place(laptops, uuid.Nil)

	gaming := f.category("gaming")
	f.place(gaming, laptops.ID)

	stored := f.reload(laptops.ID)
	placement, ok := stored.PathInTree(f.tree.ID)
	require.True(t, ok)
	assert.Equal(t, "/"+laptops.ID.String(), placement.Path)
	assert.Equal(t, uuid.Nil, placement.ParentID)

	stored = f.reload(gaming.ID)
	placement, ok = stored.PathInTree(f.tree.ID)
	require.True(t, ok)
	assert.Equal(t, "/"+laptops.ID.String()+"/"+gaming.ID.String(), placement.Path)
	assert.Equal(t, laptops.ID, placement.ParentID)
	assert.Equal(t, "laptops", placement.ParentMachineName)

	doc := f.doc(gaming.ID)
	assert.Equal(t, placement.Path, doc[projection.KeyFieldPath])
	assert.Equal(t, laptops.ID.String(), doc[projection.KeyFieldParent])
	assert.Equal(t, "24 months", inheritedGroup(t, doc)["warranty"])

	// Root categories inherit nothing and carry no parent field.
	doc = f.doc(laptops.ID)
	assert.NotContains(t, doc, projection.KeyFieldParent)
	assert.NotContains(t, doc, projection.InheritedGroup)
}

func TestMoveCascadesToDescendants(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops",
		textValue("warranty", "24 months"),
		textValue("voltage", "230V"))
	office := f.category("office",
		textValue("warranty", "6 months"),
		textValue("supplier", "contoso"))
	gaming := f.category("gaming")
	asus := f.category("asus")

	f.place(laptops, uuid.Nil)
	f.place(office, uuid.Nil)
	f.place(gaming, laptops.ID)
	f.place(asus, gaming.ID)

	err := f.engine.Move(context.Background(), "tester", f.tree.ID, gaming.ID, office.ID, "")
	require.NoError(t, err)

	officePath := "/" + office.ID.String()
	gamingPath := officePath + "/" + gaming.ID.String()
	asusPath := gamingPath + "/" + asus.ID.String()

	stored := f.reload(gaming.ID)
	placement, ok := stored.PathInTree(f.tree.ID)
	require.True(t, ok)
	assert.Equal(t, gamingPath, placement.Path)
	assert.Equal(t, office.ID, placement.ParentID)
	assert.Equal(t, "office", placement.ParentMachineName)

	stored = f.reload(asus.ID)
	placement, ok = stored.PathInTree(f.tree.ID)
	require.True(t, ok)
	assert.Equal(t, asusPath, placement.Path)
	assert.Equal(t, gaming.ID, placement.ParentID)
	assert.Equal(t, "gaming", placement.ParentMachineName)

	// The descendant's inherited set follows the new chain: values from the
	// old branch disappear, the new branch's values appear.
	doc := f.doc(asus.ID)
	assert.Equal(t, asusPath, doc[projection.KeyFieldPath])
	group := inheritedGroup(t, doc)
	assert.Equal(t, "6 months", group["warranty"])
	assert.Equal(t, "contoso", group["supplier"])
	assert.NotContains(t, group, "voltage")

	doc = f.doc(gaming.ID)
	assert.Equal(t, gamingPath, doc[projection.KeyFieldPath])
	assert.Equal(t, office.ID.String(), doc[projection.KeyFieldParent])
	group = inheritedGroup(t, doc)
	assert.Equal(t, "6 months", group["warranty"])
	assert.NotContains(t, group, "voltage")

	// The old branch is untouched.
	doc = f.doc(laptops.ID)
	assert.Equal(t, "/"+laptops.ID.String(), doc[projection.KeyFieldPath])
}

func TestMoveToRoot(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops", textValue("warranty", "24 months"))
	gaming := f.category("gaming", textValue("supplier", "acme"))
	asus := f.category("asus")

	f.place(laptops, uuid.Nil)
	f.place(gaming, laptops.ID)
	f.place(asus, gaming.ID)

	require.NoError(t, f.engine.Move(context.Background(), "tester", f.tree.ID, gaming.ID, uuid.Nil, ""))

	doc := f.doc(gaming.ID)
	assert.Equal(t, "/"+gaming.ID.String(), doc[projection.KeyFieldPath])
	assert.NotContains(t, doc, projection.InheritedGroup)

	// The grandchild now inherits from gaming alone.
	doc = f.doc(asus.ID)
	assert.Equal(t, "/"+gaming.ID.String()+"/"+asus.ID.String(), doc[projection.KeyFieldPath])
	group := inheritedGroup(t, doc)
	assert.Equal(t, "acme", group["supplier"])
	assert.NotContains(t, group, "warranty")
}

func TestMoveRejectsCycles(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops")
	gaming := f.category("gaming")
	asus := f.category("asus")

	f.place(laptops, uuid.Nil)
	f.place(gaming, laptops.ID)
	f.place(asus, gaming.ID)

	err := f.engine.Move(context.Background(), "tester", f.tree.ID, laptops.ID, asus.ID, "")
	assert.ErrorIs(t, err, ErrCycle)

	err = f.engine.Move(context.Background(), "tester", f.tree.ID, laptops.ID, gaming.ID, "")
	assert.ErrorIs(t, err, ErrCycle)
}

func TestMoveToSameParentRewritesInPlace(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops", textValue("warranty", "24 months"))
	gaming := f.category("gaming")
	f.place(laptops, uuid.Nil)
	f.place(gaming, laptops.ID)

	// Change the parent's value behind the projection's back, then "move"
	// the child to where it already is.
	stored := f.reload(laptops.ID)
	stored.SetAttribute(textValue("warranty", "36 months"))
	require.NoError(t, store.SaveCategory(context.Background(), f.aggregates, "tester", stored))

	require.NoError(t, f.engine.Move(context.Background(), "tester", f.tree.ID, gaming.ID, laptops.ID, ""))

	doc := f.doc(gaming.ID)
	assert.Equal(t, "/"+laptops.ID.String()+"/"+gaming.ID.String(), doc[projection.KeyFieldPath])
	assert.Equal(t, "36 months", inheritedGroup(t, doc)["warranty"])
}

func TestMoveOfUnplacedCategoryPlacesIt(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops")
	f.place(laptops, uuid.Nil)

	gaming := f.category("gaming")
	require.NoError(t, f.engine.Move(context.Background(), "tester", f.tree.ID, gaming.ID, laptops.ID, ""))

	doc := f.doc(gaming.ID)
	assert.Equal(t, "/"+laptops.ID.String()+"/"+gaming.ID.String(), doc[projection.KeyFieldPath])
}

func TestRootWinsPolicy(t *testing.T) {
	f := newFixture(t, PolicyRootWins)

	laptops := f.category("laptops", textValue("warranty", "24 months"))
	gaming := f.category("gaming", textValue("warranty", "12 months"))
	asus := f.category("asus")

	f.place(laptops, uuid.Nil)
	f.place(gaming, laptops.ID)
	f.place(asus, gaming.ID)

	doc := f.doc(asus.ID)
	assert.Equal(t, "24 months", inheritedGroup(t, doc)["warranty"])
}

func TestMergePolicyNearestAncestorWins(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops", textValue("warranty", "24 months"))
	gaming := f.category("gaming", textValue("warranty", "12 months"))
	asus := f.category("asus")

	f.place(laptops, uuid.Nil)
	f.place(gaming, laptops.ID)
	f.place(asus, gaming.ID)

	doc := f.doc(asus.ID)
	assert.Equal(t, "12 months", inheritedGroup(t, doc)["warranty"])
}

func TestRefreshRewritesOwnProjectionOnly(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops", textValue("warranty", "24 months"))
	f.place(laptops, uuid.Nil)

	stored := f.reload(laptops.ID)
	stored.SetAttribute(textValue("warranty", "36 months"))
	require.NoError(t, store.SaveCategory(context.Background(), f.aggregates, "tester", stored))

	require.NoError(t, f.engine.Refresh(context.Background(), f.tree.ID, laptops.ID, ""))

	doc := f.doc(laptops.ID)
	assert.Equal(t, "36 months", doc["warranty"])
	assert.Equal(t, "/"+laptops.ID.String(), doc[projection.KeyFieldPath])
}

func TestCascadeAbortsOnMissingDescendant(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops")
	office := f.category("office")
	gaming := f.category("gaming")

	f.place(laptops, uuid.Nil)
	f.place(office, uuid.Nil)
	f.place(gaming, laptops.ID)

	// A projection document points at a child whose aggregate is gone.
	gamingPath := "/" + laptops.ID.String() + "/" + gaming.ID.String()
	phantom := map[string]interface{}{
		projection.KeyFieldID:     uuid.New().String(),
		projection.KeyFieldPath:   gamingPath + "/" + uuid.New().String(),
		projection.KeyFieldParent: gaming.ID.String(),
	}
	require.NoError(t, f.documents.Upsert(context.Background(), f.schema, phantom, "", time.Now()))

	err := f.engine.Move(context.Background(), "tester", f.tree.ID, gaming.ID, office.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "cascade aborted")
}

func TestCascadeAbortsOnInconsistentChildPath(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops")
	office := f.category("office")
	gaming := f.category("gaming")

	f.place(laptops, uuid.Nil)
	f.place(office, uuid.Nil)
	f.place(gaming, laptops.ID)

	// A child document claims gaming as parent but lives on another branch.
	stray := map[string]interface{}{
		projection.KeyFieldID:     uuid.New().String(),
		projection.KeyFieldPath:   "/" + office.ID.String() + "/" + uuid.New().String(),
		projection.KeyFieldParent: gaming.ID.String(),
	}
	require.NoError(t, f.documents.Upsert(context.Background(), f.schema, stray, "", time.Now()))

	err := f.engine.Move(context.Background(), "tester", f.tree.ID, gaming.ID, office.ID, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not under")
}

func TestMoveCancelled(t *testing.T) {
	f := newFixture(t, PolicyMerge)

	laptops := f.category("laptops")
	gaming := f.category("gaming")
	f.place(laptops, uuid.Nil)
	f.place(gaming, laptops.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.engine.Move(ctx, "tester", f.tree.ID, gaming.ID, uuid.Nil, "")
	assert.ErrorIs(t, err, context.Canceled)
}
