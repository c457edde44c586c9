package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facet-db/facet/internal/attr"
)

func boardGameShape() *Shape {
	return &Shape{
		ID:          uuid.New(),
		MachineName: "board_game",
		Name:        attr.NewLocalizedString("Board Game"),
		Attributes: []AttributeReference{
			{ConfigurationID: uuid.New(), MachineName: "name"},
			{ConfigurationID: uuid.New(), MachineName: "players_min"},
			{ConfigurationID: uuid.New(), MachineName: "sku"},
		},
		TenantID: "tenant-1",
	}
}

func TestCheckShape(t *testing.T) {
	s := boardGameShape()
	assert.Empty(t, CheckShape(s))

	s.Attributes = append(s.Attributes, AttributeReference{
		ConfigurationID: uuid.New(),
		MachineName:     "name",
	})
	problems := CheckShape(s)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], `duplicate attribute machine name "name"`)

	s.MachineName = ""
	assert.Len(t, CheckShape(s), 2)
}

func TestShapeAttributeFold(t *testing.T) {
	s := boardGameShape()

	ref, ok := s.AttributeFold("Players_Min")
	require.True(t, ok)
	assert.Equal(t, "players_min", ref.MachineName)

	_, ok = s.AttributeFold("unheard_of")
	assert.False(t, ok)
}

func TestShapeSetExternal(t *testing.T) {
	s := boardGameShape()

	require.True(t, s.SetExternal("sku", "counter", int64(105)))
	ref, _ := s.Attribute("sku")
	assert.Equal(t, int64(105), ref.External["counter"])

	assert.False(t, s.SetExternal("missing", "counter", 1))
}

func TestInstanceAttributeSetAndReplace(t *testing.T) {
	in := NewInstance(uuid.New(), "tenant-1")

	in.SetAttribute(&attr.Instance{MachineName: "name", Kind: attr.KindText, Text: "Catan"})
	in.SetAttribute(&attr.Instance{MachineName: "name", Kind: attr.KindText, Text: "Chess"})
	in.SetAttribute(nil)

	require.Len(t, in.Attributes, 1)
	assert.Equal(t, "Chess", in.Attribute("name").Text)
	assert.Nil(t, in.Attribute("players_min"))

	in.RemoveAttribute("name")
	assert.Empty(t, in.Attributes)
}

func TestCategoryPaths(t *testing.T) {
	treeA, treeB := uuid.New(), uuid.New()
	c := &Category{
		Instance:    *NewInstance(uuid.New(), "tenant-1"),
		MachineName: "gaming",
	}

	c.SetPath(CategoryPath{TreeID: treeA, Path: "/l/gaming"})
	c.SetPath(CategoryPath{TreeID: treeB, Path: "/promo/gaming"})
	c.SetPath(CategoryPath{TreeID: treeA, Path: "/office/gaming"})

	require.Len(t, c.Paths, 2)

	p, ok := c.PathInTree(treeA)
	require.True(t, ok)
	assert.Equal(t, "/office/gaming", p.Path)

	_, ok = c.PathInTree(uuid.New())
	assert.False(t, ok)
}
