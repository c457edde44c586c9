package attr

import "encoding/json"

// Instances and configurations marshal through their discriminator-tagged
// encoding so persisted aggregates and wire payloads share one layout.

// MarshalJSON implements json.Marshaler
func (in *Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(Encode(in))
}

// UnmarshalJSON implements json.Unmarshaler
func (in *Instance) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := DecodeTagged(raw)
	if err != nil {
		return err
	}
	*in = *decoded
	return nil
}

// MarshalJSON implements json.Marshaler
func (c *Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(EncodeConfiguration(c))
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Configuration) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := DecodeConfiguration(raw)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}
