package projection

import (
	"fmt"

	"github.com/facet-db/facet/internal/attr"
)

// Synthesize converts a shape's attribute configurations (own plus
// inherited) into a denormalized document schema. Key fields for the
// identifier, owning shape, and tenant are always emitted; hierarchical
// shapes additionally get the path field. Inherited attributes land in one
// nested group so ancestor fields never collide with the shape's own.
func Synthesize(shapeName string, own, inherited []*attr.Configuration, hierarchical bool) (*DocumentSchema, error) {
	schema := &DocumentSchema{
		Name: shapeName,
		Fields: []Field{
			{Name: KeyFieldID, Type: TypeString, Filterable: true, Retrievable: true},
			{Name: KeyFieldShape, Type: TypeString, Filterable: true, Retrievable: true},
			{Name: KeyFieldTenant, Type: TypeString, Filterable: true, Retrievable: true},
		},
	}
	if hierarchical {
		schema.Fields = append(schema.Fields,
			Field{Name: KeyFieldPath, Type: TypeString, Filterable: true, Sortable: true, Retrievable: true},
			Field{Name: KeyFieldParent, Type: TypeString, Filterable: true, Retrievable: true},
		)
	}

	for _, cfg := range own {
		field, err := fieldFor(cfg)
		if err != nil {
			return nil, fmt.Errorf("shape %s: attribute %s: %w", shapeName, cfg.MachineName, err)
		}
		schema.Fields = append(schema.Fields, field)
	}

	if len(inherited) > 0 {
		group := Field{
			Name:        InheritedGroup,
			Type:        TypeComposite,
			Nested:      true,
			Retrievable: true,
		}
		for _, cfg := range inherited {
			field, err := fieldFor(cfg)
			if err != nil {
				return nil, fmt.Errorf("shape %s: inherited attribute %s: %w", shapeName, cfg.MachineName, err)
			}
			group.Fields = append(group.Fields, field)
		}
		schema.Fields = append(schema.Fields, group)
	}

	return schema, nil
}

// fieldFor maps one attribute configuration to its field descriptor
func fieldFor(cfg *attr.Configuration) (Field, error) {
	switch cfg.Kind {
	case attr.KindText:
		return Field{
			Name: cfg.MachineName, Type: TypeString,
			Filterable: true, Sortable: true, Facetable: true, Searchable: true, Retrievable: true,
		}, nil

	case attr.KindHTMLText:
		// Markup is searched and returned, never filtered or sorted on.
		return Field{
			Name: cfg.MachineName, Type: TypeString,
			Searchable: true, Retrievable: true,
		}, nil

	case attr.KindLocalizedText:
		return Field{
			Name: cfg.MachineName, Type: TypeComposite,
			Nested: true, Repeated: true, Retrievable: true,
			Fields: []Field{
				{Name: "cultureId", Type: TypeNumber, Filterable: true, Retrievable: true},
				{Name: "value", Type: TypeString, Searchable: true, Sortable: true, Retrievable: true},
			},
		}, nil

	case attr.KindNumber:
		return Field{
			Name: cfg.MachineName, Type: TypeNumber,
			Filterable: true, Sortable: true, Facetable: true, Retrievable: true,
		}, nil

	case attr.KindBoolean:
		return Field{
			Name: cfg.MachineName, Type: TypeBoolean,
			Filterable: true, Facetable: true, Retrievable: true,
		}, nil

	case attr.KindDateRange:
		return Field{
			Name: cfg.MachineName, Type: TypeComposite,
			Nested: true, Retrievable: true,
			Fields: []Field{
				{Name: "from", Type: TypeDate, Filterable: true, Sortable: true, Retrievable: true},
				{Name: "to", Type: TypeDate, Filterable: true, Sortable: true, Retrievable: true},
			},
		}, nil

	case attr.KindMoney:
		return Field{
			Name: cfg.MachineName, Type: TypeComposite,
			Nested: true, Retrievable: true,
			Fields: []Field{
				{Name: "amount", Type: TypeNumber, Filterable: true, Sortable: true, Retrievable: true},
				{Name: "currencyId", Type: TypeString, Filterable: true, Facetable: true, Retrievable: true},
			},
		}, nil

	case attr.KindValueFromList:
		return Field{
			Name: cfg.MachineName, Type: TypeString,
			Filterable: true, Facetable: true, Retrievable: true,
		}, nil

	case attr.KindFile:
		return Field{
			Name: cfg.MachineName, Type: TypeComposite,
			Nested: true, Retrievable: true,
			Fields: []Field{
				{Name: "url", Type: TypeString, Retrievable: true},
				{Name: "filename", Type: TypeString, Searchable: true, Retrievable: true},
			},
		}, nil

	case attr.KindImage:
		return Field{
			Name: cfg.MachineName, Type: TypeComposite,
			Nested: true, Retrievable: true,
			Fields: []Field{
				{Name: "url", Type: TypeString, Retrievable: true},
				{Name: "title", Type: TypeString, Searchable: true, Retrievable: true},
				{Name: "alt", Type: TypeString, Searchable: true, Retrievable: true},
			},
		}, nil

	case attr.KindEntityReference:
		return Field{
			Name: cfg.MachineName, Type: TypeString,
			Filterable: true, Retrievable: true,
		}, nil

	case attr.KindSerial:
		return Field{
			Name: cfg.MachineName, Type: TypeNumber,
			Filterable: true, Sortable: true, Retrievable: true,
		}, nil

	case attr.KindArray:
		if cfg.Element == nil {
			return Field{}, fmt.Errorf("array attribute declares no element configuration")
		}
		element, err := fieldFor(cfg.Element)
		if err != nil {
			return Field{}, err
		}
		// The array field takes its element's shape: composite elements
		// stay nested documents, scalar elements flatten to a repeated
		// scalar field.
		element.Name = cfg.MachineName
		element.Repeated = true
		if element.Type == TypeComposite {
			element.Nested = true
		}
		return element, nil

	default:
		return Field{}, UnknownKindError{Kind: cfg.Kind}
	}
}
