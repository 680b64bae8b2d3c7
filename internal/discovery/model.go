package discovery

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ProviderPrefix is stripped from discovered model ids.
const ProviderPrefix = "oca/"

// TransportKind selects the SDK used to talk to a model.
type TransportKind string

const (
	// TransportNative speaks the OpenAI responses API.
	TransportNative TransportKind = "native"
	// TransportCompatible speaks the OpenAI-compatible chat completions API.
	TransportCompatible TransportKind = "compatible"
)

// NPM returns the host SDK package implementing the transport.
func (k TransportKind) NPM() string {
	if k == TransportNative {
		return "@ai-sdk/openai"
	}
	return "@ai-sdk/openai-compatible"
}

// Model is one entry of the remote catalog.
type Model struct {
	ID        string
	Name      string
	Reasoning bool
	Transport TransportKind

	ContextWindow      int64
	MaxOutputTokens    int64
	MaxInputTokens     int64
	InputCostPerToken  float64
	OutputCostPerToken float64
	// SupportsVision is nil when the payload does not say.
	SupportsVision *bool

	SupportedAPIs          []string
	ReasoningEffortOptions []string

	// Extra holds payload fields that have no typed counterpart.
	Extra map[string]any
	Raw   json.RawMessage
}

// Result is the outcome of a successful discovery.
type Result struct {
	BaseURL string
	Models  []Model
}

// ModelIDs returns the ids in payload order.
func (r *Result) ModelIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Models))
	for i := range r.Models {
		ids = append(ids, r.Models[i].ID)
	}
	return ids
}

var reasoningPrefix = regexp.MustCompile(`^o[134](?:$|[-/])`)

// IsReasoningModel applies the id heuristic used when the payload carries no explicit flag.
func IsReasoningModel(id string) bool {
	model := strings.ToLower(id)
	for _, marker := range []string{"codex", "gpt-5", "reasoner", "thinking"} {
		if strings.Contains(model, marker) {
			return true
		}
	}
	if reasoningPrefix.MatchString(model) {
		return true
	}
	return strings.Contains(model, "r1")
}

// ResolveTransport picks the native transport for responses-capable models.
func ResolveTransport(id string, supportedAPIs []string) TransportKind {
	for _, api := range supportedAPIs {
		if strings.EqualFold(strings.TrimSpace(api), "responses") {
			return TransportNative
		}
	}
	model := strings.ToLower(id)
	if strings.Contains(model, "gpt-5") || strings.Contains(model, "codex") {
		return TransportNative
	}
	return TransportCompatible
}

var knownTopLevel = map[string]struct{}{
	"id": {}, "object": {}, "created": {}, "owned_by": {},
	"model_name": {}, "litellm_params": {}, "model_info": {},
}

var typedModelInfo = map[string]struct{}{
	"is_reasoning_model": {}, "context_window": {}, "max_output_tokens": {},
	"max_input_tokens": {}, "input_cost_per_token": {}, "output_cost_per_token": {},
	"supports_vision": {},
}

// ParseModels reads a models payload with a top-level data array.
// Entries without a usable id are skipped and duplicate ids keep the first entry.
func ParseModels(body []byte) ([]Model, error) {
	if len(body) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("models payload is not valid JSON")
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, nil
	}

	seen := make(map[string]struct{})
	models := make([]Model, 0, len(data.Array()))
	data.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		model, ok := parseModel(item)
		if !ok {
			return true
		}
		if _, dup := seen[model.ID]; dup {
			return true
		}
		seen[model.ID] = struct{}{}
		models = append(models, model)
		return true
	})
	return models, nil
}

func parseModel(item gjson.Result) (Model, bool) {
	id := strings.TrimSpace(item.Get("id").String())
	if id == "" {
		id = strings.TrimSpace(item.Get("litellm_params.model").String())
	}
	if id == "" {
		id = strings.TrimSpace(item.Get("model_name").String())
	}
	id = strings.TrimPrefix(id, ProviderPrefix)
	if id == "" {
		return Model{}, false
	}

	info := item.Get("model_info")
	model := Model{
		ID:                 id,
		ContextWindow:      info.Get("context_window").Int(),
		MaxOutputTokens:    info.Get("max_output_tokens").Int(),
		MaxInputTokens:     info.Get("max_input_tokens").Int(),
		InputCostPerToken:  info.Get("input_cost_per_token").Float(),
		OutputCostPerToken: info.Get("output_cost_per_token").Float(),
		Raw:                json.RawMessage(item.Raw),
	}
	if name := strings.TrimSpace(item.Get("model_name").String()); name != "" && strings.TrimPrefix(name, ProviderPrefix) != id {
		model.Name = name
	}
	if vision := info.Get("supports_vision"); vision.IsBool() {
		v := vision.Bool()
		model.SupportsVision = &v
	}
	model.SupportedAPIs = stringArray(info.Get("supported_api_list"))
	model.ReasoningEffortOptions = stringArray(info.Get("reasoning_effort_options"))

	if flag := info.Get("is_reasoning_model"); flag.IsBool() {
		model.Reasoning = flag.Bool()
	} else {
		model.Reasoning = IsReasoningModel(id)
	}
	model.Transport = ResolveTransport(id, model.SupportedAPIs)

	extra := make(map[string]any)
	item.ForEach(func(key, value gjson.Result) bool {
		if _, known := knownTopLevel[key.String()]; !known {
			extra[key.String()] = value.Value()
		}
		return true
	})
	if info.IsObject() {
		info.ForEach(func(key, value gjson.Result) bool {
			if _, typed := typedModelInfo[key.String()]; typed {
				return true
			}
			if value.Type == gjson.Null {
				return true
			}
			extra[key.String()] = value.Value()
			return true
		})
	}
	if len(extra) > 0 {
		model.Extra = extra
	}
	return model, true
}

func stringArray(value gjson.Result) []string {
	if !value.IsArray() {
		return nil
	}
	out := make([]string, 0, len(value.Array()))
	for _, item := range value.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
