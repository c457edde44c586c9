package attr

import "time"

// Encode renders an instance as a discriminator-tagged generic tree, the
// exact shape DecodeTagged accepts and the shape a JSON parse of the wire
// payload would produce. Scalars are emitted as JSON scalar types (float64
// for numbers) so that encode/decode round-trips without a marshal cycle.
func Encode(inst *Instance) map[string]interface{} {
	if inst == nil {
		return nil
	}

	out := map[string]interface{}{
		"valueType":   inst.Kind.String(),
		"machineName": inst.MachineName,
	}

	switch inst.Kind {
	case KindText, KindHTMLText:
		out["value"] = inst.Text

	case KindLocalizedText:
		values := make([]interface{}, 0, len(inst.Localized))
		for _, lv := range inst.Localized {
			values = append(values, map[string]interface{}{
				"cultureId": float64(lv.CultureID),
				"value":     lv.Value,
			})
		}
		out["value"] = values

	case KindNumber:
		if inst.Number != nil {
			out["value"] = *inst.Number
		}

	case KindBoolean:
		if inst.Boolean != nil {
			out["value"] = *inst.Boolean
		}

	case KindDateRange:
		if inst.From != nil {
			out["from"] = inst.From.Format(time.RFC3339)
		}
		if inst.To != nil {
			out["to"] = inst.To.Format(time.RFC3339)
		}

	case KindMoney:
		if inst.Amount != nil {
			out["amount"] = *inst.Amount
		}
		out["currencyId"] = inst.CurrencyID.String()

	case KindValueFromList:
		out["value"] = inst.OptionMachineName

	case KindFile:
		out["url"] = inst.URL
		out["filename"] = inst.Filename

	case KindImage:
		out["url"] = inst.URL
		out["title"] = inst.Title
		out["alt"] = inst.Alt

	case KindEntityReference:
		out["value"] = inst.ReferenceID.String()

	case KindArray:
		items := make([]interface{}, 0, len(inst.Elements))
		for _, el := range inst.Elements {
			items = append(items, Encode(el))
		}
		out["items"] = items

	case KindSerial:
		if inst.Serial != nil {
			out["value"] = float64(*inst.Serial)
		}

	default:
		panic("attr: unsupported attribute kind " + inst.Kind.String())
	}

	return out
}
