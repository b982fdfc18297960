package conversation

import (
	"encoding/json"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Recognized parameter keys. Anything else round-trips through Extra untouched.
const (
	KeySystemPrompt = "system_prompt"
	KeyModel        = "model"
	KeyTemperature  = "temperature"
	KeyMaxTokens    = "max_tokens"
)

const (
	DefaultModel        = "gpt-4o-mini"
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 1000
	DefaultSystemPrompt = "You are a helpful assistant."
)

// Params are the per-conversation generation parameters. On the wire and in
// the store they are a flat open mapping; the recognized keys are lifted into
// typed fields and everything else is preserved in Extra.
type Params struct {
	SystemPrompt string
	Model        string
	Temperature  *float64
	MaxTokens    *int
	Extra        map[string]interface{}
}

// GenerationSettings are the effective parameters for a single model call,
// after defaults have been applied.
type GenerationSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Resolve applies the baseline defaults for every unset recognized key.
func (p Params) Resolve() GenerationSettings {
	s := GenerationSettings{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	if p.Model != "" {
		s.Model = p.Model
	}
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		s.MaxTokens = *p.MaxTokens
	}
	return s
}

// EffectiveSystemPrompt returns the configured system prompt, or the default
// instruction when the key is absent or empty.
func (p Params) EffectiveSystemPrompt() string {
	if p.SystemPrompt != "" {
		return p.SystemPrompt
	}
	return DefaultSystemPrompt
}

func (p Params) Clone() Params {
	out := p
	if p.Extra != nil {
		out.Extra = make(map[string]interface{}, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func (p Params) toMap() map[string]interface{} {
	m := make(map[string]interface{}, len(p.Extra)+4)
	for k, v := range p.Extra {
		m[k] = v
	}
	if p.SystemPrompt != "" {
		m[KeySystemPrompt] = p.SystemPrompt
	}
	if p.Model != "" {
		m[KeyModel] = p.Model
	}
	if p.Temperature != nil {
		m[KeyTemperature] = *p.Temperature
	}
	if p.MaxTokens != nil {
		m[KeyMaxTokens] = *p.MaxTokens
	}
	return m
}

func (p *Params) fromMap(m map[string]interface{}) error {
	*p = Params{}
	for k, v := range m {
		switch k {
		case KeySystemPrompt:
			s, ok := v.(string)
			if !ok {
				return errors.Errorf("params: %s must be a string", k)
			}
			p.SystemPrompt = s
		case KeyModel:
			s, ok := v.(string)
			if !ok {
				return errors.Errorf("params: %s must be a string", k)
			}
			p.Model = s
		case KeyTemperature:
			f, ok := toFloat(v)
			if !ok {
				return errors.Errorf("params: %s must be a number", k)
			}
			p.Temperature = &f
		case KeyMaxTokens:
			f, ok := toFloat(v)
			if !ok {
				return errors.Errorf("params: %s must be a number", k)
			}
			n := int(f)
			p.MaxTokens = &n
		default:
			if p.Extra == nil {
				p.Extra = map[string]interface{}{}
			}
			p.Extra[k] = v
		}
	}
	return nil
}

// toFloat accepts the numeric shapes JSON and BSON decoding produce.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
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
	default:
		return 0, false
	}
}

func (p Params) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toMap())
}

func (p *Params) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, "unmarshal params")
	}
	return p.fromMap(m)
}

func (p Params) MarshalBSON() ([]byte, error) {
	return bson.Marshal(p.toMap())
}

func (p *Params) UnmarshalBSON(data []byte) error {
	var m map[string]interface{}
	if err := bson.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, "unmarshal params")
	}
	return p.fromMap(m)
}
