package attr

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DecodeValue decodes a generic structured value (a parsed JSON tree) into
// an instance of the configured kind. This is the first half of the
// two-phase wire decode: the caller has already matched the raw value to an
// attribute configuration; this function applies the kind's decode rules.
// A nil raw value decodes to a nil instance (absent), which validation then
// judges against the required flag.
func DecodeValue(cfg *Configuration, raw interface{}) (*Instance, error) {
	if raw == nil {
		return nil, nil
	}

	inst := &Instance{MachineName: cfg.MachineName, Kind: cfg.Kind}

	switch cfg.Kind {
	case KindText, KindHTMLText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("attribute %s: expected a string, got %T", cfg.MachineName, raw)
		}
		inst.Text = s

	case KindLocalizedText:
		localized, err := decodeLocalized(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", cfg.MachineName, err)
		}
		inst.Localized = localized

	case KindNumber:
		n, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("attribute %s: expected a number, got %T", cfg.MachineName, raw)
		}
		inst.Number = &n

	case KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("attribute %s: expected a boolean, got %T", cfg.MachineName, raw)
		}
		inst.Boolean = &b

	case KindDateRange:
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("attribute %s: expected an object with from/to, got %T", cfg.MachineName, raw)
		}
		from, err := decodeTime(m["from"])
		if err != nil || from == nil {
			return nil, fmt.Errorf("attribute %s: date range requires a valid from", cfg.MachineName)
		}
		inst.From = from
		// A missing or null "to" is an open-ended range.
		if to, err := decodeTime(m["to"]); err == nil {
			inst.To = to
		} else {
			return nil, fmt.Errorf("attribute %s: invalid range end: %w", cfg.MachineName, err)
		}

	case KindMoney:
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("attribute %s: expected an object with amount/currencyId, got %T", cfg.MachineName, raw)
		}
		amount, ok := m["amount"].(float64)
		if !ok {
			return nil, fmt.Errorf("attribute %s: money requires a numeric amount", cfg.MachineName)
		}
		inst.Amount = &amount
		if rawCur, present := m["currencyId"]; present && rawCur != nil {
			id, err := decodeUUID(rawCur)
			if err != nil {
				return nil, fmt.Errorf("attribute %s: invalid currencyId: %w", cfg.MachineName, err)
			}
			inst.CurrencyID = id
		} else {
			inst.CurrencyID = cfg.DefaultCurrencyID
		}

	case KindValueFromList:
		switch v := raw.(type) {
		case string:
			inst.OptionMachineName = v
		case map[string]interface{}:
			name, ok := v["machineName"].(string)
			if !ok {
				return nil, fmt.Errorf("attribute %s: option object requires a machineName", cfg.MachineName)
			}
			inst.OptionMachineName = name
		default:
			return nil, fmt.Errorf("attribute %s: expected an option machine name, got %T", cfg.MachineName, raw)
		}

	case KindFile:
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("attribute %s: expected an object with url/filename, got %T", cfg.MachineName, raw)
		}
		inst.URL, _ = m["url"].(string)
		inst.Filename, _ = m["filename"].(string)

	case KindImage:
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("attribute %s: expected an object with url/title/alt, got %T", cfg.MachineName, raw)
		}
		inst.URL, _ = m["url"].(string)
		inst.Title, _ = m["title"].(string)
		inst.Alt, _ = m["alt"].(string)

	case KindEntityReference:
		id, err := decodeUUID(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: invalid entity reference: %w", cfg.MachineName, err)
		}
		inst.ReferenceID = id

	case KindArray:
		if cfg.Element == nil {
			panic("attr: array configuration without element configuration")
		}
		seq, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("attribute %s: expected a sequence, got %T", cfg.MachineName, raw)
		}
		for i, rawEl := range seq {
			el, err := DecodeValue(cfg.Element, rawEl)
			if err != nil {
				// First element error wins; later elements are not decoded.
				return nil, fmt.Errorf("attribute %s: element %d: %w", cfg.MachineName, i, err)
			}
			inst.Elements = append(inst.Elements, el)
		}

	case KindSerial:
		return nil, fmt.Errorf("attribute %s: serial values are generated and cannot be supplied", cfg.MachineName)

	default:
		// Reaching this with stored configuration data means the registry
		// is out of sync; that is not a user error.
		panic("attr: unsupported attribute kind " + cfg.Kind.String())
	}

	return inst, nil
}

// DecodeTagged decodes a discriminator-tagged instance payload. The
// valueType field selects the concrete kind; a payload naming a kind not in
// the registry is rejected.
func DecodeTagged(raw map[string]interface{}) (*Instance, error) {
	tag, ok := raw["valueType"].(string)
	if !ok {
		return nil, fmt.Errorf("payload is missing the valueType discriminator")
	}
	kind, err := ParseKind(tag)
	if err != nil {
		return nil, err
	}

	inst := &Instance{Kind: kind}
	inst.MachineName, _ = raw["machineName"].(string)

	switch kind {
	case KindText, KindHTMLText:
		inst.Text, _ = raw["value"].(string)

	case KindLocalizedText:
		localized, err := decodeLocalized(raw["value"])
		if err != nil {
			return nil, err
		}
		inst.Localized = localized

	case KindNumber:
		if n, ok := raw["value"].(float64); ok {
			inst.Number = &n
		}

	case KindBoolean:
		if b, ok := raw["value"].(bool); ok {
			inst.Boolean = &b
		}

	case KindDateRange:
		from, err := decodeTime(raw["from"])
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %w", err)
		}
		to, err := decodeTime(raw["to"])
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %w", err)
		}
		inst.From, inst.To = from, to

	case KindMoney:
		if amount, ok := raw["amount"].(float64); ok {
			inst.Amount = &amount
		}
		if rawCur, present := raw["currencyId"]; present && rawCur != nil {
			id, err := decodeUUID(rawCur)
			if err != nil {
				return nil, fmt.Errorf("invalid currencyId: %w", err)
			}
			inst.CurrencyID = id
		}

	case KindValueFromList:
		inst.OptionMachineName, _ = raw["value"].(string)

	case KindFile:
		inst.URL, _ = raw["url"].(string)
		inst.Filename, _ = raw["filename"].(string)

	case KindImage:
		inst.URL, _ = raw["url"].(string)
		inst.Title, _ = raw["title"].(string)
		inst.Alt, _ = raw["alt"].(string)

	case KindEntityReference:
		if rawRef, present := raw["value"]; present && rawRef != nil {
			id, err := decodeUUID(rawRef)
			if err != nil {
				return nil, fmt.Errorf("invalid entity reference: %w", err)
			}
			inst.ReferenceID = id
		}

	case KindArray:
		items, _ := raw["items"].([]interface{})
		for i, rawEl := range items {
			m, ok := rawEl.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("element %d: expected a tagged object, got %T", i, rawEl)
			}
			el, err := DecodeTagged(m)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			inst.Elements = append(inst.Elements, el)
		}

	case KindSerial:
		if n, ok := raw["value"].(float64); ok {
			v := int64(n)
			inst.Serial = &v
		}
	}

	return inst, nil
}

func decodeLocalized(raw interface{}) (LocalizedString, error) {
	switch v := raw.(type) {
	case string:
		// Bare strings are filed under the fallback culture.
		return NewLocalizedString(v), nil

	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var localized LocalizedString
		for _, key := range keys {
			cultureID, err := ParseCultureTag(key)
			if err != nil {
				return nil, err
			}
			s, ok := v[key].(string)
			if !ok {
				return nil, fmt.Errorf("culture %s: expected a string, got %T", key, v[key])
			}
			localized = append(localized, LocalizedValue{CultureID: cultureID, Value: s})
		}
		return localized, nil

	case []interface{}:
		var localized LocalizedString
		for i, rawEl := range v {
			m, ok := rawEl.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("entry %d: expected an object, got %T", i, rawEl)
			}
			cultureID, ok := m["cultureId"].(float64)
			if !ok {
				return nil, fmt.Errorf("entry %d: expected a numeric cultureId", i)
			}
			s, _ := m["value"].(string)
			localized = append(localized, LocalizedValue{CultureID: int(cultureID), Value: s})
		}
		return localized, nil

	default:
		return nil, fmt.Errorf("expected a string or a map keyed by culture, got %T", raw)
	}
}

func decodeTime(raw interface{}) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected an RFC 3339 timestamp, got %T", raw)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeUUID(raw interface{}) (uuid.UUID, error) {
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("expected a uuid string, got %T", raw)
	}
	return uuid.Parse(s)
}
