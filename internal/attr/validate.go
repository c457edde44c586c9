package attr

import (
	"fmt"

	"github.com/google/uuid"
)

// RequiredMessage is the single error emitted when a required attribute has
// no instance.
const RequiredMessage = "Attribute is Required"

// Validate checks an instance against its configuration and returns the full
// list of problems. An absent instance of a required configuration yields
// exactly the required error. A kind mismatch between configuration and
// instance is its own error, distinct from value-range errors. Validate
// never fails on expected bad input; it panics only on an unknown kind,
// which means the registry is out of sync with stored data.
func Validate(cfg *Configuration, inst *Instance, requiredCanBeNull bool) []string {
	if inst == nil {
		if cfg.Required && !requiredCanBeNull {
			return []string{RequiredMessage}
		}
		return nil
	}

	if inst.Kind != cfg.Kind {
		return []string{fmt.Sprintf("value of kind %s does not match attribute kind %s", inst.Kind, cfg.Kind)}
	}

	switch cfg.Kind {
	case KindText, KindHTMLText:
		return nil

	case KindLocalizedText:
		return nil

	case KindNumber:
		return validateNumber(cfg, inst)

	case KindBoolean:
		if inst.Boolean == nil {
			return []string{"value is missing"}
		}
		return nil

	case KindDateRange:
		return validateDateRange(inst)

	case KindMoney:
		return validateMoney(cfg, inst)

	case KindValueFromList:
		if _, ok := cfg.OptionByMachineName(inst.OptionMachineName); !ok {
			return []string{fmt.Sprintf("%q is not one of the allowed options", inst.OptionMachineName)}
		}
		return nil

	case KindFile:
		if inst.URL == "" {
			return []string{"file url is missing"}
		}
		return nil

	case KindImage:
		if inst.URL == "" {
			return []string{"image url is missing"}
		}
		return nil

	case KindEntityReference:
		if inst.ReferenceID == uuid.Nil {
			return []string{"referenced entity id is missing"}
		}
		return nil

	case KindArray:
		return validateArray(cfg, inst)

	case KindSerial:
		// The value is always generated; nothing the caller supplies is
		// checked here.
		return nil

	default:
		panic("attr: unsupported attribute kind " + cfg.Kind.String())
	}
}

func validateNumber(cfg *Configuration, inst *Instance) []string {
	if inst.Number == nil {
		return []string{"value is missing"}
	}

	var problems []string
	v := *inst.Number

	if cfg.Subtype == NumberInteger && v != float64(int64(v)) {
		problems = append(problems, "value must be an integer")
	}
	if cfg.Minimum != nil && v < *cfg.Minimum {
		problems = append(problems, fmt.Sprintf("value is less than the minimum of %v", *cfg.Minimum))
	}
	if cfg.Maximum != nil && v > *cfg.Maximum {
		problems = append(problems, fmt.Sprintf("value is greater than the maximum of %v", *cfg.Maximum))
	}

	return problems
}

func validateDateRange(inst *Instance) []string {
	if inst.From == nil {
		return []string{"range start is missing"}
	}
	if inst.To != nil && inst.To.Before(*inst.From) {
		return []string{"range end must not be before range start"}
	}
	return nil
}

func validateMoney(cfg *Configuration, inst *Instance) []string {
	var problems []string

	if inst.Amount == nil {
		problems = append(problems, "amount is missing")
	}
	currencyID := inst.CurrencyID
	if currencyID == uuid.Nil {
		currencyID = cfg.DefaultCurrencyID
	}
	if !cfg.HasCurrency(currencyID) {
		problems = append(problems, "currency is not one of the configured currencies")
	}

	return problems
}

func validateArray(cfg *Configuration, inst *Instance) []string {
	if cfg.Element == nil {
		panic("attr: array configuration without element configuration")
	}

	var problems []string
	for i, el := range inst.Elements {
		for _, p := range Validate(cfg.Element, el, false) {
			problems = append(problems, fmt.Sprintf("element %d: %s", i, p))
		}
	}
	return problems
}
