package attr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Errors contains validation errors for a record, keyed by attribute machine
// name. It accumulates across all attributes before being returned so a
// caller gets the complete error set in one round trip.
type Errors struct {
	Fields map[string][]string `json:"fields"`
}

// NewErrors creates an empty Errors instance
func NewErrors() *Errors {
	return &Errors{Fields: make(map[string][]string)}
}

// Add adds a validation error for a specific attribute
func (ve *Errors) Add(machineName, message string) {
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	ve.Fields[machineName] = append(ve.Fields[machineName], message)
}

// AddAll adds several validation errors for a specific attribute
func (ve *Errors) AddAll(machineName string, messages []string) {
	for _, msg := range messages {
		ve.Add(machineName, msg)
	}
}

// HasErrors returns true if there are any validation errors
func (ve *Errors) HasErrors() bool {
	return len(ve.Fields) > 0
}

// Count returns the total number of validation errors across all attributes
func (ve *Errors) Count() int {
	count := 0
	for _, messages := range ve.Fields {
		count += len(messages)
	}
	return count
}

// Error implements the error interface
func (ve *Errors) Error() string {
	if !ve.HasErrors() {
		return "validation failed"
	}

	var messages []string
	for field, errs := range ve.Fields {
		for _, msg := range errs {
			messages = append(messages, fmt.Sprintf("  - %s: %s", field, msg))
		}
	}

	if len(messages) == 1 {
		return fmt.Sprintf("validation failed: %s", strings.TrimPrefix(messages[0], "  - "))
	}

	return fmt.Sprintf("validation failed:\n%s", strings.Join(messages, "\n"))
}

// MarshalJSON implements json.Marshaler for the wire error envelope
func (ve *Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "validation_failed",
		Fields: ve.Fields,
	})
}
