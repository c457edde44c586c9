package attr

import (
	"fmt"

	"github.com/google/uuid"
)

// DecodeConfiguration decodes a discriminator-tagged attribute configuration
// payload. Like instance payloads, the valueType field selects the kind and
// an unknown kind is rejected.
func DecodeConfiguration(raw map[string]interface{}) (*Configuration, error) {
	tag, ok := raw["valueType"].(string)
	if !ok {
		return nil, fmt.Errorf("payload is missing the valueType discriminator")
	}
	kind, err := ParseKind(tag)
	if err != nil {
		return nil, err
	}

	cfg := &Configuration{Kind: kind}

	if rawID, present := raw["id"]; present && rawID != nil {
		id, err := decodeUUID(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid id: %w", err)
		}
		cfg.ID = id
	} else {
		cfg.ID = uuid.New()
	}

	cfg.MachineName, _ = raw["machineName"].(string)
	cfg.Required, _ = raw["isRequired"].(bool)

	if rawName, present := raw["name"]; present {
		name, err := decodeLocalized(rawName)
		if err != nil {
			return nil, fmt.Errorf("name: %w", err)
		}
		cfg.Name = name
	}
	if rawDesc, present := raw["description"]; present && rawDesc != nil {
		desc, err := decodeLocalized(rawDesc)
		if err != nil {
			return nil, fmt.Errorf("description: %w", err)
		}
		cfg.Description = desc
	}

	switch kind {
	case KindNumber:
		if sub, ok := raw["numberType"].(string); ok {
			subtype, err := ParseNumberSubtype(sub)
			if err != nil {
				return nil, err
			}
			cfg.Subtype = subtype
		}
		cfg.Minimum = floatField(raw, "minimumValue")
		cfg.Maximum = floatField(raw, "maximumValue")
		cfg.DefaultNumber = floatField(raw, "defaultValue")

	case KindValueFromList:
		options, _ := raw["valuesList"].([]interface{})
		for i, rawOpt := range options {
			m, ok := rawOpt.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("option %d: expected an object, got %T", i, rawOpt)
			}
			opt := Option{}
			if rawID, present := m["id"]; present && rawID != nil {
				id, err := decodeUUID(rawID)
				if err != nil {
					return nil, fmt.Errorf("option %d: invalid id: %w", i, err)
				}
				opt.ID = id
			} else {
				opt.ID = uuid.New()
			}
			opt.MachineName, _ = m["machineName"].(string)
			opt.Name, _ = m["name"].(string)
			cfg.Options = append(cfg.Options, opt)
		}

	case KindMoney:
		currencies, _ := raw["currencies"].([]interface{})
		for i, rawCur := range currencies {
			m, ok := rawCur.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("currency %d: expected an object, got %T", i, rawCur)
			}
			cur := Currency{}
			if rawID, present := m["id"]; present && rawID != nil {
				id, err := decodeUUID(rawID)
				if err != nil {
					return nil, fmt.Errorf("currency %d: invalid id: %w", i, err)
				}
				cur.ID = id
			} else {
				cur.ID = uuid.New()
			}
			cur.Code, _ = m["code"].(string)
			cur.Name, _ = m["name"].(string)
			cfg.Currencies = append(cfg.Currencies, cur)
		}
		if rawDefault, present := raw["defaultCurrencyId"]; present && rawDefault != nil {
			id, err := decodeUUID(rawDefault)
			if err != nil {
				return nil, fmt.Errorf("invalid defaultCurrencyId: %w", err)
			}
			cfg.DefaultCurrencyID = id
		}

	case KindSerial:
		if n, ok := raw["startingNumber"].(float64); ok {
			cfg.StartingNumber = int64(n)
		}
		if n, ok := raw["increment"].(float64); ok {
			cfg.Increment = int64(n)
		}

	case KindArray:
		rawEl, ok := raw["itemsAttributeConfiguration"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("array configuration requires itemsAttributeConfiguration")
		}
		element, err := DecodeConfiguration(rawEl)
		if err != nil {
			return nil, fmt.Errorf("element configuration: %w", err)
		}
		cfg.Element = element
	}

	return cfg, nil
}

// EncodeConfiguration renders a configuration as a discriminator-tagged
// generic tree
func EncodeConfiguration(cfg *Configuration) map[string]interface{} {
	if cfg == nil {
		return nil
	}

	out := map[string]interface{}{
		"valueType":   cfg.Kind.String(),
		"id":          cfg.ID.String(),
		"machineName": cfg.MachineName,
		"isRequired":  cfg.Required,
		"name":        encodeLocalized(cfg.Name),
	}
	if len(cfg.Description) > 0 {
		out["description"] = encodeLocalized(cfg.Description)
	}

	switch cfg.Kind {
	case KindNumber:
		out["numberType"] = cfg.Subtype.String()
		if cfg.Minimum != nil {
			out["minimumValue"] = *cfg.Minimum
		}
		if cfg.Maximum != nil {
			out["maximumValue"] = *cfg.Maximum
		}
		if cfg.DefaultNumber != nil {
			out["defaultValue"] = *cfg.DefaultNumber
		}

	case KindValueFromList:
		options := make([]interface{}, 0, len(cfg.Options))
		for _, opt := range cfg.Options {
			options = append(options, map[string]interface{}{
				"id":          opt.ID.String(),
				"machineName": opt.MachineName,
				"name":        opt.Name,
			})
		}
		out["valuesList"] = options

	case KindMoney:
		currencies := make([]interface{}, 0, len(cfg.Currencies))
		for _, cur := range cfg.Currencies {
			currencies = append(currencies, map[string]interface{}{
				"id":   cur.ID.String(),
				"code": cur.Code,
				"name": cur.Name,
			})
		}
		out["currencies"] = currencies
		out["defaultCurrencyId"] = cfg.DefaultCurrencyID.String()

	case KindSerial:
		out["startingNumber"] = float64(cfg.StartingNumber)
		out["increment"] = float64(cfg.Increment)

	case KindArray:
		out["itemsAttributeConfiguration"] = EncodeConfiguration(cfg.Element)
	}

	return out
}

func encodeLocalized(ls LocalizedString) []interface{} {
	values := make([]interface{}, 0, len(ls))
	for _, lv := range ls {
		values = append(values, map[string]interface{}{
			"cultureId": float64(lv.CultureID),
			"value":     lv.Value,
		})
	}
	return values
}

func floatField(raw map[string]interface{}, key string) *float64 {
	if v, ok := raw[key].(float64); ok {
		return &v
	}
	return nil
}
