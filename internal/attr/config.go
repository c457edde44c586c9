package attr

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var machineNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Option is one selectable entry of a value-from-list attribute
type Option struct {
	ID          uuid.UUID `json:"id"`
	MachineName string    `json:"machineName"`
	Name        string    `json:"name"`
}

// Currency is one accepted currency of a money attribute
type Currency struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

// Configuration declares a single attribute: its kind, naming, and the
// kind-specific constraints. One struct covers all kinds; only the fields
// belonging to Kind are meaningful, mirroring how payloads carry a common
// header plus a kind-specific remainder.
type Configuration struct {
	ID          uuid.UUID       `json:"id"`
	Kind        Kind            `json:"-"`
	MachineName string          `json:"machineName"`
	Name        LocalizedString `json:"name"`
	Description LocalizedString `json:"description,omitempty"`
	Required    bool            `json:"isRequired"`

	// Number
	Subtype       NumberSubtype `json:"-"`
	Minimum       *float64      `json:"minimumValue,omitempty"`
	Maximum       *float64      `json:"maximumValue,omitempty"`
	DefaultNumber *float64      `json:"defaultValue,omitempty"`

	// ValueFromList
	Options []Option `json:"valuesList,omitempty"`

	// Money
	Currencies        []Currency `json:"currencies,omitempty"`
	DefaultCurrencyID uuid.UUID  `json:"defaultCurrencyId,omitempty"`

	// Serial
	StartingNumber int64 `json:"startingNumber,omitempty"`
	Increment      int64 `json:"increment,omitempty"`

	// Array
	Element *Configuration `json:"itemsAttributeConfiguration,omitempty"`
}

// CheckConfiguration validates the schema-level invariants of a single
// attribute configuration. It returns the full list of problems rather than
// stopping at the first, so a caller gets everything in one round trip.
func CheckConfiguration(cfg *Configuration) []string {
	var problems []string

	if cfg.MachineName == "" {
		problems = append(problems, "machine name must not be empty")
	} else if !machineNamePattern.MatchString(cfg.MachineName) {
		problems = append(problems, fmt.Sprintf("machine name %q must match %s", cfg.MachineName, machineNamePattern.String()))
	}

	switch cfg.Kind {
	case KindText, KindLocalizedText, KindHTMLText, KindBoolean,
		KindDateRange, KindFile, KindImage, KindEntityReference:
		// No kind-specific invariants beyond the common header.

	case KindNumber:
		if cfg.Minimum != nil && cfg.Maximum != nil && *cfg.Minimum > *cfg.Maximum {
			problems = append(problems, "minimum must not exceed maximum")
		}
		if cfg.DefaultNumber != nil {
			if cfg.Minimum != nil && *cfg.DefaultNumber < *cfg.Minimum {
				problems = append(problems, "default value is less than the minimum")
			}
			if cfg.Maximum != nil && *cfg.DefaultNumber > *cfg.Maximum {
				problems = append(problems, "default value is greater than the maximum")
			}
		}

	case KindValueFromList:
		if len(cfg.Options) == 0 {
			problems = append(problems, "values list must not be empty")
		}
		seenNames := make(map[string]bool, len(cfg.Options))
		seenMachineNames := make(map[string]bool, len(cfg.Options))
		for _, opt := range cfg.Options {
			if !machineNamePattern.MatchString(opt.MachineName) {
				problems = append(problems, fmt.Sprintf("option machine name %q must match %s", opt.MachineName, machineNamePattern.String()))
			}
			if seenNames[opt.Name] {
				problems = append(problems, fmt.Sprintf("duplicate option name %q", opt.Name))
			}
			if seenMachineNames[opt.MachineName] {
				problems = append(problems, fmt.Sprintf("duplicate option machine name %q", opt.MachineName))
			}
			seenNames[opt.Name] = true
			seenMachineNames[opt.MachineName] = true
		}

	case KindMoney:
		if len(cfg.Currencies) == 0 {
			problems = append(problems, "currency list must not be empty")
		}
		found := false
		for _, cur := range cfg.Currencies {
			if cur.ID == cfg.DefaultCurrencyID {
				found = true
				break
			}
		}
		if !found {
			problems = append(problems, "default currency must be one of the configured currencies")
		}

	case KindSerial:
		if cfg.Increment <= 0 {
			problems = append(problems, "increment must be greater than zero")
		}
		if cfg.StartingNumber < 0 {
			problems = append(problems, "starting number must not be negative")
		}

	case KindArray:
		if cfg.Element == nil {
			problems = append(problems, "array attribute must declare an element configuration")
		} else {
			for _, p := range CheckConfiguration(cfg.Element) {
				problems = append(problems, "element: "+p)
			}
		}

	default:
		problems = append(problems, fmt.Sprintf("unknown attribute kind %d", cfg.Kind))
	}

	return problems
}

// OptionByMachineName resolves a value-from-list option by its machine name
func (c *Configuration) OptionByMachineName(name string) (Option, bool) {
	for _, opt := range c.Options {
		if opt.MachineName == name {
			return opt, true
		}
	}
	return Option{}, false
}

// HasCurrency reports whether the given currency id is configured
func (c *Configuration) HasCurrency(id uuid.UUID) bool {
	for _, cur := range c.Currencies {
		if cur.ID == id {
			return true
		}
	}
	return false
}
