package attr

import (
	"time"

	"github.com/google/uuid"
)

// Instance is a concrete value for one attribute on one record. Like
// Configuration, a single struct covers all kinds; only the value fields
// belonging to Kind are meaningful.
type Instance struct {
	MachineName string `json:"machineName"`
	Kind        Kind   `json:"-"`

	// Text, HtmlText
	Text string `json:"-"`

	// LocalizedText
	Localized LocalizedString `json:"-"`

	// Number
	Number *float64 `json:"-"`

	// Boolean
	Boolean *bool `json:"-"`

	// DateRange
	From *time.Time `json:"-"`
	To   *time.Time `json:"-"`

	// Money
	Amount     *float64  `json:"-"`
	CurrencyID uuid.UUID `json:"-"`

	// ValueFromList: machine name of the selected option
	OptionMachineName string `json:"-"`

	// File, Image
	URL      string `json:"-"`
	Filename string `json:"-"`
	Title    string `json:"-"`
	Alt      string `json:"-"`

	// EntityReference
	ReferenceID uuid.UUID `json:"-"`

	// Array
	Elements []*Instance `json:"-"`

	// Serial. Nil on create; assigned by the generator during processing.
	Serial *int64 `json:"-"`
}

// Value extracts the instance's value in its natural shape: a scalar for
// scalar kinds, a map for composite kinds, a slice for arrays. A nil
// instance extracts to nil. Panics on an unknown kind: the registry being
// out of sync with stored data is a programmer error, not user input.
func (in *Instance) Value() interface{} {
	if in == nil {
		return nil
	}

	switch in.Kind {
	case KindText, KindHTMLText:
		return in.Text

	case KindLocalizedText:
		return in.Localized

	case KindNumber:
		if in.Number == nil {
			return nil
		}
		return *in.Number

	case KindBoolean:
		if in.Boolean == nil {
			return nil
		}
		return *in.Boolean

	case KindDateRange:
		out := map[string]interface{}{"from": in.From}
		if in.To != nil {
			out["to"] = in.To
		} else {
			out["to"] = nil
		}
		return out

	case KindMoney:
		var amount interface{}
		if in.Amount != nil {
			amount = *in.Amount
		}
		return map[string]interface{}{
			"amount":     amount,
			"currencyId": in.CurrencyID,
		}

	case KindValueFromList:
		return in.OptionMachineName

	case KindFile:
		return map[string]interface{}{
			"url":      in.URL,
			"filename": in.Filename,
		}

	case KindImage:
		return map[string]interface{}{
			"url":   in.URL,
			"title": in.Title,
			"alt":   in.Alt,
		}

	case KindEntityReference:
		return in.ReferenceID

	case KindArray:
		values := make([]interface{}, 0, len(in.Elements))
		for _, el := range in.Elements {
			values = append(values, el.Value())
		}
		return values

	case KindSerial:
		if in.Serial == nil {
			return nil
		}
		return *in.Serial

	default:
		panic("attr: unsupported attribute kind " + in.Kind.String())
	}
}
