package engine

import (
	"encoding/json"
	"reflect"

	"github.com/cespare/xxhash/v2"

	"github.com/matt-riley/statbridge"
	"github.com/matt-riley/statbridge/payload"
)

const defaultRuleID = "default"

// evalGate resolves a gate for a user and reports which rule produced the
// result.
func evalGate(g Gate, user statbridge.UserContext) (bool, string) {
	if !g.Enabled {
		return false, "disabled"
	}
	for _, rule := range g.Rules {
		if ruleMatches(rule, g.Name, user) {
			return true, rule.ID
		}
	}
	return false, defaultRuleID
}

// evalConfig resolves a config or layer for a user. The first matching rule
// wins; otherwise the config's default values apply.
func evalConfig(c Config, user statbridge.UserContext) payload.Payload {
	for _, rule := range c.Rules {
		if ruleMatches(rule, c.Name, user) {
			return payload.Payload{Name: c.Name, Values: nonNilValues(rule.Values), RuleID: rule.ID}
		}
	}
	return payload.Payload{Name: c.Name, Values: nonNilValues(c.DefaultValues), RuleID: defaultRuleID}
}

func nonNilValues(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return values
}

func ruleMatches(rule Rule, name string, user statbridge.UserContext) bool {
	for _, cond := range rule.Conditions {
		if !conditionPasses(cond, user) {
			return false
		}
	}
	return inBucket(user.ID, name, rule)
}

func conditionPasses(cond Condition, user statbridge.UserContext) bool {
	attr, ok := attributeValue(user, cond.Attribute)
	if !ok {
		return false
	}
	switch cond.Operator {
	case OperatorEquals:
		return valuesEqual(attr, cond.Value)
	case OperatorIn:
		return valueIn(attr, cond.Value)
	default:
		return false
	}
}

// attributeValue resolves a condition attribute against the user's scalar
// wire fields first, then the custom and private attribute maps.
func attributeValue(user statbridge.UserContext, name string) (any, bool) {
	switch name {
	case "id":
		return user.ID, user.ID != ""
	case "email":
		return user.Email, user.Email != ""
	case "ipAddress":
		return user.IPAddress, user.IPAddress != ""
	case "userAgent":
		return user.UserAgent, user.UserAgent != ""
	case "country":
		return user.Country, user.Country != ""
	case "locale":
		return user.Locale, user.Locale != ""
	case "appVersion":
		return user.AppVersion, user.AppVersion != ""
	}
	if v, ok := user.Custom[name]; ok {
		return v, true
	}
	if v, ok := user.PrivateAttributes[name]; ok {
		return v, true
	}
	return nil, false
}

// bucket deterministically maps a user to 0-99 for a given entity and salt.
// An empty user ID hashes like any other value, so all anonymous users land
// in the same bucket.
func bucket(userID, name, salt string) int {
	return int(xxhash.Sum64String(userID+":"+name+":"+salt) % 100)
}

func inBucket(userID, name string, rule Rule) bool {
	if rule.PassPercentage >= 100 {
		return true
	}
	if rule.PassPercentage <= 0 {
		return false
	}
	return bucket(userID, name, rule.Salt) < rule.PassPercentage
}

// valuesEqual compares attribute and rule values across the numeric types
// JSON decoding produces on either side (float64, json.Number, native ints
// from caller-built contexts). Non-numeric values compare deeply.
func valuesEqual(left, right any) bool {
	lf, lok := asFloat64(left)
	rf, rok := asFloat64(right)
	if lok && rok {
		return lf == rf
	}
	if lok != rok {
		return false
	}
	return reflect.DeepEqual(left, right)
}

func valueIn(value, ruleValue any) bool {
	list := reflect.ValueOf(ruleValue)
	if !list.IsValid() || (list.Kind() != reflect.Slice && list.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < list.Len(); i++ {
		if valuesEqual(value, list.Index(i).Interface()) {
			return true
		}
	}
	return false
}

func asFloat64(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
