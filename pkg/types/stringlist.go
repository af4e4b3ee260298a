package types

import "encoding/json"

// StringList accepts either a JSON array of strings or a single
// comma-joined string on ingress. Legacy clients send both shapes for
// treatments and allergies; the canonical internal form is a slice.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *StringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = items
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	if joined == "" {
		*l = nil
		return nil
	}
	*l = []string{joined}
	return nil
}
