// Package payload parses the dynamically shaped result of a config,
// experiment or layer evaluation and exposes two access styles over it:
// lenient typed getters that coerce and fall back to a caller default, and a
// strict decode into a caller-defined struct that fails loudly on mismatch.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// ErrSchemaMismatch is returned by Decode when the payload's value map does
// not satisfy the target type's schema.
var ErrSchemaMismatch = errors.New("payload schema mismatch")

// Payload is the decoded shape of a config, experiment or layer evaluation
// result. The JSON field names are part of the wire contract with the engine.
// Values is an open string-keyed map whose entries may be scalars or nested
// maps. A Payload is read-only after construction.
type Payload struct {
	Name   string         `json:"name"`
	Values map[string]any `json:"values"`
	RuleID string         `json:"ruleId"`
}

// Empty returns a payload with empty name, rule identifier and value map.
func Empty() Payload {
	return Payload{Values: map[string]any{}}
}

// Parse decodes a raw payload document. Parse never fails: malformed,
// missing or non-object input yields [Empty], and a payload without a value
// map gets an empty one.
func Parse(raw []byte) Payload {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Empty()
	}
	if p.Values == nil {
		p.Values = map[string]any{}
	}
	return p
}

// String returns the value at key as a string, or def when the key is absent
// or the value cannot be represented as one.
func (p Payload) String(key, def string) string {
	raw, ok := p.Values[key]
	if !ok {
		return def
	}
	v, err := cast.ToStringE(raw)
	if err != nil {
		return def
	}
	return v
}

// Bool returns the value at key as a bool. Numeric values coerce with
// nonzero meaning true. Absent or non-coercible values yield def.
func (p Payload) Bool(key string, def bool) bool {
	raw, ok := p.Values[key]
	if !ok {
		return def
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		return def
	}
	return v
}

// Int returns the value at key as an int, truncating fractional numbers.
// Absent or non-coercible values yield def.
func (p Payload) Int(key string, def int) int {
	raw, ok := p.Values[key]
	if !ok {
		return def
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return def
	}
	return v
}

// Float returns the value at key as a float64. Absent or non-coercible
// values yield def.
func (p Payload) Float(key string, def float64) float64 {
	raw, ok := p.Values[key]
	if !ok {
		return def
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return def
	}
	return v
}

// Decode deserializes the payload's value map into T. Unlike the lenient
// getters, Decode is strict: a missing field, an extra constraint violation
// or a type mismatch fails with an error matching [ErrSchemaMismatch] that
// carries the underlying cause. Field names follow the target's json tags.
func Decode[T any](p Payload) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &out,
		TagName:    "json",
		ErrorUnset: true,
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if err := dec.Decode(p.Values); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return out, nil
}
