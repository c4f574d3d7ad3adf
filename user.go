package statbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserContext is the structurally complete evaluation unit handed to the
// engine. The JSON field names are part of the wire contract shared with the
// engine and must not change.
//
// After normalization every map field is present (possibly empty), never nil,
// so the serialized shape is stable across engine calls. Two contexts with an
// empty ID are equivalent for bucketing purposes.
type UserContext struct {
	ID                string         `json:"id"`
	Email             string         `json:"email"`
	IPAddress         string         `json:"ipAddress"`
	UserAgent         string         `json:"userAgent"`
	Country           string         `json:"country"`
	Locale            string         `json:"locale"`
	AppVersion        string         `json:"appVersion"`
	Custom            map[string]any `json:"custom"`
	PrivateAttributes map[string]any `json:"privateAttributes"`
	EnvironmentTags   map[string]any `json:"environmentTags"`
	CustomIdentifiers map[string]any `json:"customIdentifiers"`
}

// DefaultUser returns the canonical user skeleton: all scalar fields empty,
// all map fields present and empty.
func DefaultUser() UserContext {
	return UserContext{
		Custom:            map[string]any{},
		PrivateAttributes: map[string]any{},
		EnvironmentTags:   map[string]any{},
		CustomIdentifiers: map[string]any{},
	}
}

// NormalizeUser merges a partial, possibly empty user document onto the
// canonical skeleton from [DefaultUser] and returns the completed context.
//
// The merge is a patch merge: scalar fields in the input overwrite the
// default, and map fields replace the corresponding default map as a whole
// (they are not deep-merged key by key). An explicit JSON null resets a field
// to its default. Unknown fields are ignored.
//
// Empty or whitespace-only input yields the skeleton unchanged. Input that is
// not a JSON object, or that carries a known field of the wrong type, fails
// with [ErrInvalidUserInput]. NormalizeUser is pure: no side effects, and the
// result never aliases the input.
func NormalizeUser(raw []byte) (UserContext, error) {
	u := DefaultUser()
	if len(bytes.TrimSpace(raw)) == 0 {
		return u, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return UserContext{}, fmt.Errorf("%w: user document must be a JSON object: %v", ErrInvalidUserInput, err)
	}

	for name, value := range fields {
		var err error
		switch name {
		case "id":
			err = patchString(value, &u.ID)
		case "email":
			err = patchString(value, &u.Email)
		case "ipAddress":
			err = patchString(value, &u.IPAddress)
		case "userAgent":
			err = patchString(value, &u.UserAgent)
		case "country":
			err = patchString(value, &u.Country)
		case "locale":
			err = patchString(value, &u.Locale)
		case "appVersion":
			err = patchString(value, &u.AppVersion)
		case "custom":
			err = patchMap(value, &u.Custom)
		case "privateAttributes":
			err = patchMap(value, &u.PrivateAttributes)
		case "environmentTags":
			err = patchMap(value, &u.EnvironmentTags)
		case "customIdentifiers":
			err = patchMap(value, &u.CustomIdentifiers)
		default:
			// Unknown fields are ignored for forward compatibility.
		}
		if err != nil {
			return UserContext{}, fmt.Errorf("%w: field %q: %v", ErrInvalidUserInput, name, err)
		}
	}
	return u, nil
}

// EncodeUser serializes a context using the wire field names. Failures are
// reported as [ErrEncoding].
func EncodeUser(u UserContext) ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return data, nil
}

func patchString(value json.RawMessage, dst *string) error {
	if isNull(value) {
		*dst = ""
		return nil
	}
	return json.Unmarshal(value, dst)
}

// patchMap replaces the destination map wholesale. A null value resets it to
// an empty map so the field stays present after serialization.
func patchMap(value json.RawMessage, dst *map[string]any) error {
	if isNull(value) {
		*dst = map[string]any{}
		return nil
	}
	next := map[string]any{}
	if err := json.Unmarshal(value, &next); err != nil {
		return err
	}
	*dst = next
	return nil
}

func isNull(value json.RawMessage) bool {
	return string(bytes.TrimSpace(value)) == "null"
}
