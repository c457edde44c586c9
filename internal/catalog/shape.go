// Package catalog defines the runtime schema objects: shapes (entity
// configurations), the instances that conform to them, and the category
// trees instances can be grouped into.
package catalog

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/facet-db/facet/internal/attr"
)

// AttributeReference is one entry of a shape's ordered attribute list. The
// configuration itself is a separate aggregate; the reference carries the
// denormalized machine name for lookups plus any out-of-band per-shape state
// (for serial attributes, the latest externally materialized counter value).
type AttributeReference struct {
	ConfigurationID uuid.UUID              `json:"configurationId"`
	MachineName     string                 `json:"machineName"`
	External        map[string]interface{} `json:"externalValues,omitempty"`
}

// Shape is an entity configuration: an ordered, named collection of
// attribute references that instances conform to.
type Shape struct {
	ID          uuid.UUID            `json:"id"`
	MachineName string               `json:"machineName"`
	Name        attr.LocalizedString `json:"name"`
	Attributes  []AttributeReference `json:"attributes"`
	TenantID    string               `json:"tenantId,omitempty"`
	Metadata    map[string]string    `json:"metadata,omitempty"`
}

// CheckShape validates the shape-level invariants: a non-empty machine name
// and attribute machine names unique within the shape.
func CheckShape(s *Shape) []string {
	var problems []string

	if s.MachineName == "" {
		problems = append(problems, "shape machine name must not be empty")
	}

	seen := make(map[string]bool, len(s.Attributes))
	for _, ref := range s.Attributes {
		if seen[ref.MachineName] {
			problems = append(problems, fmt.Sprintf("duplicate attribute machine name %q", ref.MachineName))
		}
		seen[ref.MachineName] = true
	}

	return problems
}

// Attribute returns the reference with the given machine name
func (s *Shape) Attribute(machineName string) (AttributeReference, bool) {
	for _, ref := range s.Attributes {
		if ref.MachineName == machineName {
			return ref, true
		}
	}
	return AttributeReference{}, false
}

// AttributeFold resolves a machine name case-insensitively. Wire payloads
// match attribute-named fields this way for forward compatibility.
func (s *Shape) AttributeFold(name string) (AttributeReference, bool) {
	for _, ref := range s.Attributes {
		if strings.EqualFold(ref.MachineName, name) {
			return ref, true
		}
	}
	return AttributeReference{}, false
}

// SetExternal stores an out-of-band value on the attribute reference with
// the given machine name
func (s *Shape) SetExternal(machineName, key string, value interface{}) bool {
	for i, ref := range s.Attributes {
		if ref.MachineName != machineName {
			continue
		}
		if s.Attributes[i].External == nil {
			s.Attributes[i].External = make(map[string]interface{})
		}
		s.Attributes[i].External[key] = value
		return true
	}
	return false
}
