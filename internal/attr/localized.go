package attr

// FallbackCultureID is the culture a bare (non-localized) string is filed
// under when a payload omits culture information. 1033 is the en-US LCID.
const FallbackCultureID = 1033

// LocalizedValue is one culture's rendition of a localizable string
type LocalizedValue struct {
	CultureID int    `json:"cultureId"`
	Value     string `json:"value"`
}

// LocalizedString is an ordered list of per-culture values. Order is
// preserved from the payload; lookups scan in order so the first entry for a
// culture wins.
type LocalizedString []LocalizedValue

// NewLocalizedString builds a single-culture localized string using the
// fallback culture
func NewLocalizedString(value string) LocalizedString {
	return LocalizedString{{CultureID: FallbackCultureID, Value: value}}
}

// Get returns the value for the given culture and whether it was present
func (ls LocalizedString) Get(cultureID int) (string, bool) {
	for _, lv := range ls {
		if lv.CultureID == cultureID {
			return lv.Value, true
		}
	}
	return "", false
}

// GetOrFallback returns the value for the given culture, falling back to the
// fallback culture, then to the first entry
func (ls LocalizedString) GetOrFallback(cultureID int) string {
	if v, ok := ls.Get(cultureID); ok {
		return v
	}
	if v, ok := ls.Get(FallbackCultureID); ok {
		return v
	}
	if len(ls) > 0 {
		return ls[0].Value
	}
	return ""
}

// Set replaces the value for a culture, appending when absent
func (ls LocalizedString) Set(cultureID int, value string) LocalizedString {
	for i, lv := range ls {
		if lv.CultureID == cultureID {
			ls[i].Value = value
			return ls
		}
	}
	return append(ls, LocalizedValue{CultureID: cultureID, Value: value})
}
