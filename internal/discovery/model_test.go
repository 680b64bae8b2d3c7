package discovery

import (
	"reflect"
	"testing"
)

func TestIsReasoningModel(t *testing.T) {
	tests := map[string]bool{
		"gpt-5.3-codex":     true,
		"GPT-5":             true,
		"deepseek-reasoner": true,
		"claude-thinking":   true,
		"o1":                true,
		"o3-mini":           true,
		"o4/preview":        true,
		"o2-mini":           false,
		"omni":              false,
		"deepseek-r1":       true,
		"llama-3.3-70b":     false,
		"gpt-oss-120b":      false,
	}
	for id, want := range tests {
		if got := IsReasoningModel(id); got != want {
			t.Errorf("IsReasoningModel(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestResolveTransport(t *testing.T) {
	if got := ResolveTransport("gpt-5.3-codex", nil); got != TransportNative {
		t.Errorf("expected native for codex, got %s", got)
	}
	if got := ResolveTransport("llama", []string{"chat_completions", "Responses"}); got != TransportNative {
		t.Errorf("expected native when responses api listed, got %s", got)
	}
	if got := ResolveTransport("llama", []string{"chat_completions"}); got != TransportCompatible {
		t.Errorf("expected compatible, got %s", got)
	}
	if TransportNative.NPM() != "@ai-sdk/openai" || TransportCompatible.NPM() != "@ai-sdk/openai-compatible" {
		t.Error("unexpected npm packages")
	}
}

func TestParseModels(t *testing.T) {
	body := []byte(`{
		"object": "list",
		"data": [
			{"id": "oca/gpt-5.3-codex", "object": "model"},
			{"id": "oca/gpt-5.3-codex"},
			{"litellm_params": {"model": "oca/llama-4"}, "model_name": "Llama 4",
			 "model_info": {"is_reasoning_model": true, "supported_api_list": ["chat_completions"],
				"context_window": 131072, "max_output_tokens": 8192, "max_input_tokens": 120000,
				"input_cost_per_token": 0.000001, "output_cost_per_token": 0.000002,
				"supports_vision": true, "reasoning_effort_options": ["low", "high"],
				"mode": "chat", "deprecation_date": null}},
			{"model_name": "oca/grok-4", "tier": "internal"},
			{"id": ""},
			"not-an-object"
		]
	}`)
	models, err := ParseModels(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %d: %+v", len(models), models)
	}

	codex := models[0]
	if codex.ID != "gpt-5.3-codex" || !codex.Reasoning || codex.Transport != TransportNative {
		t.Errorf("unexpected codex model: %+v", codex)
	}

	llama := models[1]
	if llama.ID != "llama-4" || llama.Name != "Llama 4" {
		t.Errorf("unexpected llama identity: %+v", llama)
	}
	if !llama.Reasoning {
		t.Error("expected explicit reasoning flag to win over the heuristic")
	}
	if llama.Transport != TransportCompatible {
		t.Errorf("expected compatible transport, got %s", llama.Transport)
	}
	if llama.ContextWindow != 131072 || llama.MaxOutputTokens != 8192 || llama.MaxInputTokens != 120000 {
		t.Errorf("unexpected limits: %+v", llama)
	}
	if llama.SupportsVision == nil || !*llama.SupportsVision {
		t.Error("expected supports_vision true")
	}
	if !reflect.DeepEqual(llama.ReasoningEffortOptions, []string{"low", "high"}) {
		t.Errorf("unexpected effort options %v", llama.ReasoningEffortOptions)
	}
	if llama.Extra["mode"] != "chat" {
		t.Errorf("expected unknown field in Extra, got %v", llama.Extra)
	}
	if _, ok := llama.Extra["deprecation_date"]; ok {
		t.Error("expected null fields to be skipped")
	}
	if _, ok := llama.Extra["context_window"]; ok {
		t.Error("typed fields must not leak into Extra")
	}

	grok := models[2]
	if grok.ID != "grok-4" || grok.Name != "" || grok.Extra["tier"] != "internal" {
		t.Errorf("unexpected grok model: %+v", grok)
	}
}

func TestParseModels_EdgeCases(t *testing.T) {
	if models, err := ParseModels(nil); err != nil || models != nil {
		t.Errorf("expected nil for empty body, got %v %v", models, err)
	}
	if _, err := ParseModels([]byte("<html>")); err == nil {
		t.Error("expected error for non-JSON body")
	}
	if models, err := ParseModels([]byte(`{"models":[]}`)); err != nil || len(models) != 0 {
		t.Errorf("expected no models without data array, got %v %v", models, err)
	}
}
