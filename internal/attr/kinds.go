// Package attr defines the closed set of attribute kinds that make up the
// runtime type system: configurations (the declaration of a field, its kind
// and constraints), instances (a concrete value for that field on one
// record), per-kind validation, value extraction, and the wire codec.
package attr

import "fmt"

// Kind represents one of the built-in attribute kinds
type Kind int

const (
	KindText Kind = iota
	KindLocalizedText
	KindHTMLText
	KindNumber
	KindBoolean
	KindDateRange
	KindMoney
	KindValueFromList
	KindFile
	KindImage
	KindEntityReference
	KindArray
	KindSerial
)

// String returns the wire name of the kind, used as the valueType
// discriminator in tagged payloads
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindLocalizedText:
		return "localizedText"
	case KindHTMLText:
		return "htmlText"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindDateRange:
		return "dateRange"
	case KindMoney:
		return "money"
	case KindValueFromList:
		return "valueFromList"
	case KindFile:
		return "file"
	case KindImage:
		return "image"
	case KindEntityReference:
		return "entityReference"
	case KindArray:
		return "array"
	case KindSerial:
		return "serial"
	default:
		return "unknown"
	}
}

// ParseKind converts a wire name to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "text":
		return KindText, nil
	case "localizedText":
		return KindLocalizedText, nil
	case "htmlText":
		return KindHTMLText, nil
	case "number":
		return KindNumber, nil
	case "boolean":
		return KindBoolean, nil
	case "dateRange":
		return KindDateRange, nil
	case "money":
		return KindMoney, nil
	case "valueFromList":
		return KindValueFromList, nil
	case "file":
		return KindFile, nil
	case "image":
		return KindImage, nil
	case "entityReference":
		return KindEntityReference, nil
	case "array":
		return KindArray, nil
	case "serial":
		return KindSerial, nil
	default:
		return 0, fmt.Errorf("unknown attribute kind: %s", s)
	}
}

// Kinds returns every supported kind, in declaration order
func Kinds() []Kind {
	return []Kind{
		KindText,
		KindLocalizedText,
		KindHTMLText,
		KindNumber,
		KindBoolean,
		KindDateRange,
		KindMoney,
		KindValueFromList,
		KindFile,
		KindImage,
		KindEntityReference,
		KindArray,
		KindSerial,
	}
}

// NumberSubtype distinguishes integer from decimal number attributes
type NumberSubtype int

const (
	NumberInteger NumberSubtype = iota
	NumberDecimal
)

// String returns the string representation of the number subtype
func (n NumberSubtype) String() string {
	switch n {
	case NumberInteger:
		return "integer"
	case NumberDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// ParseNumberSubtype converts a string to a NumberSubtype
func ParseNumberSubtype(s string) (NumberSubtype, error) {
	switch s {
	case "integer":
		return NumberInteger, nil
	case "decimal":
		return NumberDecimal, nil
	default:
		return 0, fmt.Errorf("unknown number subtype: %s", s)
	}
}
