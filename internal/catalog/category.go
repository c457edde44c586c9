package catalog

import (
	"github.com/google/uuid"
)

// CategoryPath records a category's placement in one tree: the full path
// from root (ancestor ids joined by the separator, ending with the
// category's own id) plus the direct parent.
type CategoryPath struct {
	TreeID            uuid.UUID `json:"treeId"`
	Path              string    `json:"path"`
	ParentID          uuid.UUID `json:"parentId,omitempty"`
	ParentMachineName string    `json:"parentMachineName,omitempty"`
}

// Category is an instance that can be placed in one or more category trees.
type Category struct {
	Instance
	MachineName string         `json:"machineName"`
	Paths       []CategoryPath `json:"paths,omitempty"`
}

// PathInTree returns the category's placement in the given tree
func (c *Category) PathInTree(treeID uuid.UUID) (CategoryPath, bool) {
	for _, p := range c.Paths {
		if p.TreeID == treeID {
			return p, true
		}
	}
	return CategoryPath{}, false
}

// SetPath replaces the placement for the path's tree, appending when the
// category was not yet placed in that tree
func (c *Category) SetPath(path CategoryPath) {
	for i, p := range c.Paths {
		if p.TreeID == path.TreeID {
			c.Paths[i] = path
			return
		}
	}
	c.Paths = append(c.Paths, path)
}

// Tree is a category hierarchy: all categories in a tree share one shape.
type Tree struct {
	ID          uuid.UUID `json:"id"`
	MachineName string    `json:"machineName"`
	ShapeID     uuid.UUID `json:"shapeId"`
	TenantID    string    `json:"tenantId,omitempty"`
}
