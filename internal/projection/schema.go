// Package projection synthesizes denormalized document schemas from
// attribute configurations and flattens instances into documents matching
// those schemas. The documents feed the search/filter read model.
package projection

import "fmt"

// StorageType is the storage type of a document field
type StorageType int

const (
	TypeString StorageType = iota
	TypeNumber
	TypeBoolean
	TypeDate
	TypeComposite
)

// String returns the string representation of the storage type
func (s StorageType) String() string {
	switch s {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Field describes one document field: its storage type, the query
// capabilities the backend should index it for, and nested sub-fields for
// composite shapes.
type Field struct {
	Name        string      `json:"name"`
	Type        StorageType `json:"type"`
	Filterable  bool        `json:"filterable"`
	Sortable    bool        `json:"sortable"`
	Facetable   bool        `json:"facetable"`
	Searchable  bool        `json:"searchable"`
	Retrievable bool        `json:"retrievable"`

	// Repeated marks array-valued fields; Nested marks fields whose values
	// are objects (indexed as nested documents).
	Repeated bool    `json:"repeated,omitempty"`
	Nested   bool    `json:"nested,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

// SubField returns the nested field with the given name
func (f Field) SubField(name string) (Field, bool) {
	for _, sub := range f.Fields {
		if sub.Name == name {
			return sub, true
		}
	}
	return Field{}, false
}

// DocumentSchema is the synthesized schema of one shape's projection
// documents. Name doubles as the index/collection name in the projection
// store.
type DocumentSchema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field returns the top-level field with the given name
func (s *DocumentSchema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KeyFieldID and friends are the key fields every projection document
// carries regardless of shape.
const (
	KeyFieldID     = "id"
	KeyFieldShape  = "shapeId"
	KeyFieldTenant = "tenantId"
	KeyFieldPath   = "path"
	KeyFieldParent = "parentId"

	// InheritedGroup is the nested group holding ancestor attributes, kept
	// apart so shared ancestor fields cannot collide with the shape's own.
	InheritedGroup = "inherited"
)

// UnknownKindError is returned when synthesis meets an attribute kind the
// registry does not know. That is a configuration bug, not user input.
type UnknownKindError struct {
	Kind fmt.Stringer
}

func (e UnknownKindError) Error() string {
	return fmt.Sprintf("cannot synthesize projection field for unsupported attribute kind %q", e.Kind)
}
