package handlers

import (
	"encoding/json"
	"net/http"
)

// decodeBody reads the request body as a loose field map. An
// undecodable body is recovered locally by substituting an empty
// payload; the missing required fields then fail their own validation
// downstream. Parsing never produces a fatal error.
func decodeBody(r *http.Request) map[string]json.RawMessage {
	defer r.Body.Close()
	fields := make(map[string]json.RawMessage)
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return map[string]json.RawMessage{}
	}
	return fields
}

// stringField returns the field as a string pointer, or nil if the
// field is absent or not a string. Malformed optional fields are
// treated as absent, not rejected.
func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// stringValue is stringField flattened to "" for absent.
func stringValue(fields map[string]json.RawMessage, key string) string {
	if s := stringField(fields, key); s != nil {
		return *s
	}
	return ""
}

// numberField returns the field as a float64 pointer, or nil if the
// field is absent or not a number.
func numberField(fields map[string]json.RawMessage, key string) *float64 {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}
