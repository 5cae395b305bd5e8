package payload

import "encoding/json"

// ToJSON renders p as plain JSON, dropping Value's tagged-union wrapper
// down to whatever encoding/json already does with the matching native
// Go type. This is the wire/segment format pkg/storage persists payload
// segments in.
func (p Payload) ToJSON() ([]byte, error) {
	plain := make(map[string]any, len(p))
	for k, v := range p {
		plain[k] = v.Interface()
	}
	return json.Marshal(plain)
}

// FromJSON parses data (produced by ToJSON, or any plain JSON object)
// back into a Payload.
func FromJSON(data []byte) (Payload, error) {
	var plain map[string]any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	out := make(Payload, len(plain))
	for k, v := range plain {
		val, err := FromAny(v)
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}
