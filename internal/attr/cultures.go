package attr

import (
	"fmt"
	"strconv"
)

// cultureTags maps the culture tags we accept in localized-text payloads to
// their LCIDs. Payload keys may also be bare LCIDs ("1033").
var cultureTags = map[string]int{
	"en-US": 1033,
	"en-GB": 2057,
	"de-DE": 1031,
	"fr-FR": 1036,
	"es-ES": 3082,
	"it-IT": 1040,
	"pt-BR": 1046,
	"ru-RU": 1049,
	"lt-LT": 1063,
	"pl-PL": 1045,
	"ja-JP": 1041,
	"zh-CN": 2052,
}

// ParseCultureTag resolves a localized-text map key to a culture id. Keys
// are either a known culture tag ("en-US") or a numeric LCID ("1033").
func ParseCultureTag(key string) (int, error) {
	if id, ok := cultureTags[key]; ok {
		return id, nil
	}
	if id, err := strconv.Atoi(key); err == nil && id > 0 {
		return id, nil
	}
	return 0, fmt.Errorf("unknown culture tag: %s", key)
}
