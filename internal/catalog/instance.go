package catalog

import (
	"github.com/google/uuid"

	"github.com/facet-db/facet/internal/attr"
)

// Instance is a value bag conforming to a shape: at most one attribute
// instance per machine name the shape declares.
type Instance struct {
	ID         uuid.UUID        `json:"id"`
	ShapeID    uuid.UUID        `json:"shapeId"`
	TenantID   string           `json:"tenantId,omitempty"`
	Attributes []*attr.Instance `json:"attributes"`
}

// NewInstance creates an empty instance of the given shape
func NewInstance(shapeID uuid.UUID, tenantID string) *Instance {
	return &Instance{
		ID:       uuid.New(),
		ShapeID:  shapeID,
		TenantID: tenantID,
	}
}

// Attribute returns the value for the given machine name, or nil when the
// instance carries none
func (in *Instance) Attribute(machineName string) *attr.Instance {
	for _, a := range in.Attributes {
		if a.MachineName == machineName {
			return a
		}
	}
	return nil
}

// SetAttribute replaces the value for the attribute's machine name,
// appending when absent. A nil value is ignored.
func (in *Instance) SetAttribute(value *attr.Instance) {
	if value == nil {
		return
	}
	for i, a := range in.Attributes {
		if a.MachineName == value.MachineName {
			in.Attributes[i] = value
			return
		}
	}
	in.Attributes = append(in.Attributes, value)
}

// RemoveAttribute drops the value for the given machine name
func (in *Instance) RemoveAttribute(machineName string) {
	for i, a := range in.Attributes {
		if a.MachineName == machineName {
			in.Attributes = append(in.Attributes[:i], in.Attributes[i+1:]...)
			return
		}
	}
}
