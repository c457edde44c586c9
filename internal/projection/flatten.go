package projection

import (
	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
)

// Flatten renders an instance as a projection document matching the shape's
// synthesized schema. Key fields are always present; path only when
// non-empty; inherited attribute values land under the inherited group.
func Flatten(in *catalog.Instance, path string, inherited map[string]*attr.Instance) map[string]interface{} {
	doc := map[string]interface{}{
		KeyFieldID:     in.ID.String(),
		KeyFieldShape:  in.ShapeID.String(),
		KeyFieldTenant: in.TenantID,
	}
	if path != "" {
		doc[KeyFieldPath] = path
	}

	for _, a := range in.Attributes {
		doc[a.MachineName] = fieldValue(a)
	}

	if len(inherited) > 0 {
		group := make(map[string]interface{}, len(inherited))
		for name, a := range inherited {
			group[name] = fieldValue(a)
		}
		doc[InheritedGroup] = group
	}

	return doc
}

// fieldValue renders one attribute instance in its document shape
func fieldValue(in *attr.Instance) interface{} {
	if in == nil {
		return nil
	}

	switch in.Kind {
	case attr.KindLocalizedText:
		values := make([]interface{}, 0, len(in.Localized))
		for _, lv := range in.Localized {
			values = append(values, map[string]interface{}{
				"cultureId": lv.CultureID,
				"value":     lv.Value,
			})
		}
		return values

	case attr.KindMoney:
		var amount interface{}
		if in.Amount != nil {
			amount = *in.Amount
		}
		return map[string]interface{}{
			"amount":     amount,
			"currencyId": in.CurrencyID.String(),
		}

	case attr.KindEntityReference:
		return in.ReferenceID.String()

	case attr.KindArray:
		values := make([]interface{}, 0, len(in.Elements))
		for _, el := range in.Elements {
			values = append(values, fieldValue(el))
		}
		return values

	default:
		return in.Value()
	}
}
