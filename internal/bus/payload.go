package bus

import "encoding/json"

// Encode round-trips a typed payload through JSON into the map[string]any
// shape Event.Data requires.
func Encode(v any) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode unmarshals an Event's Data map into a typed destination struct.
func Decode(data map[string]interface{}, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
