package engine

// Operator names a condition comparison.
type Operator string

const (
	OperatorEquals Operator = "equals"
	OperatorIn     Operator = "in"
)

// Condition compares one user attribute against a rule value. Attribute
// lookup covers the user's scalar fields by wire name (id, email, country,
// ...) and falls back to the custom and private attribute maps.
type Condition struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value"`
}

// Rule is one targeting rule. All conditions must pass, then the user must
// fall inside the rule's pass percentage bucket. For config and layer rules,
// Values is the payload returned on a match.
type Rule struct {
	ID             string         `json:"id"`
	Conditions     []Condition    `json:"conditions"`
	PassPercentage int            `json:"passPercentage"`
	Salt           string         `json:"salt"`
	Values         map[string]any `json:"values,omitempty"`
}

// Gate is a boolean flag. A disabled gate resolves false for everyone; an
// enabled gate resolves true for users matched by any rule.
type Gate struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Rules   []Rule `json:"rules"`
}

// Config is a named key-value payload, optionally varying per user via
// rules. Experiments share this shape: an experiment is a config whose rules
// carry the engine-assigned group values.
type Config struct {
	Name          string         `json:"name"`
	Rules         []Rule         `json:"rules"`
	DefaultValues map[string]any `json:"defaultValues"`
}

// Ruleset is the full evaluation state synced from the configuration
// service or bootstrapped from a local file.
type Ruleset struct {
	Version int64             `json:"version"`
	Gates   map[string]Gate   `json:"gates"`
	Configs map[string]Config `json:"configs"`
	Layers  map[string]Config `json:"layers"`
}

func emptyRuleset() Ruleset {
	return Ruleset{
		Gates:   map[string]Gate{},
		Configs: map[string]Config{},
		Layers:  map[string]Config{},
	}
}

// normalize fills nil maps after JSON decoding so lookups never touch a nil
// map.
func (r *Ruleset) normalize() {
	if r.Gates == nil {
		r.Gates = map[string]Gate{}
	}
	if r.Configs == nil {
		r.Configs = map[string]Config{}
	}
	if r.Layers == nil {
		r.Layers = map[string]Config{}
	}
}
