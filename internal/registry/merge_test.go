package registry

import (
	"testing"

	"github.com/shariqriazz/ocaauth/internal/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func sampleResult() *discovery.Result {
	return &discovery.Result{
		BaseURL: "https://code.example/litellm",
		Models: []discovery.Model{
			{
				ID:        "gpt-5.3-codex",
				Reasoning: true,
				Transport: discovery.TransportNative,
			},
			{
				ID:                 "llama-4",
				Name:               "Llama 4",
				Transport:          discovery.TransportCompatible,
				ContextWindow:      131072,
				MaxOutputTokens:    8192,
				InputCostPerToken:  0.000002,
				OutputCostPerToken: 0.000004,
				SupportsVision:     boolPtr(true),
				Extra:              map[string]any{"mode": "chat", "reasoning_effort_options": []any{"low", "high"}},
			},
		},
	}
}

func TestMergeDiscovered_CodexExample(t *testing.T) {
	provider := NewProvider(ProviderID)
	added := MergeDiscovered(provider, sampleResult())
	require.Equal(t, 2, added)

	entry, ok := provider.Model("gpt-5.3-codex")
	require.True(t, ok)
	assert.Equal(t, "gpt-5.3-codex", entry.ID)
	assert.Equal(t, "oca", entry.ProviderID)
	assert.Equal(t, "gpt-5.3-codex", entry.Name)
	assert.True(t, entry.Capabilities.Reasoning)
	assert.Equal(t, "@ai-sdk/openai", entry.API.NPM)
	assert.Equal(t, "https://code.example/litellm", entry.API.URL)
	assert.Equal(t, int64(128_000), entry.Limit.Context)
	assert.Equal(t, int64(16_384), entry.Limit.Output)
	assert.Equal(t, "active", entry.Status)
	assert.True(t, entry.Capabilities.ToolCall)

	llama, ok := provider.Model("llama-4")
	require.True(t, ok)
	assert.Equal(t, "Llama 4", llama.Name)
	assert.Equal(t, "@ai-sdk/openai-compatible", llama.API.NPM)
	assert.Equal(t, int64(131072), llama.Limit.Context)
	assert.Equal(t, int64(8192), llama.Limit.Output)
	assert.InDelta(t, 2.0, llama.Cost.Input, 1e-9)
	assert.InDelta(t, 4.0, llama.Cost.Output, 1e-9)
	assert.True(t, llama.Capabilities.Attachment)
	assert.True(t, llama.Capabilities.Input.Image)
	bucket, ok := llama.Options[OptionsNamespace].(map[string]any)
	require.True(t, ok, "expected namespaced options bucket")
	assert.Equal(t, "chat", bucket["mode"])
}

func TestMergeDiscovered_Idempotent(t *testing.T) {
	once := NewProvider(ProviderID)
	MergeDiscovered(once, sampleResult())

	twice := NewProvider(ProviderID)
	MergeDiscovered(twice, sampleResult())
	added := MergeDiscovered(twice, sampleResult())

	assert.Equal(t, 0, added)
	assert.Equal(t, once.Models(), twice.Models())
}

func TestMergeDiscovered_PreservesUserFields(t *testing.T) {
	provider := NewProvider(ProviderID)
	provider.Put(&ModelEntry{
		ID:         "llama-4",
		ProviderID: "custom",
		Name:       "My Llama",
		API:        ModelAPI{ID: "stale", URL: "https://stale.example", NPM: "stale"},
		Cost:       Cost{Input: 9, Output: 11},
		Limit:      Limit{Context: 4096, Output: 1024},
		Capabilities: Capabilities{
			Reasoning: true,
		},
		Options: map[string]any{"temperature": 0.2},
		Headers: map[string]string{"X-Team": "blue"},
	})

	MergeDiscovered(provider, sampleResult())
	entry, ok := provider.Model("llama-4")
	require.True(t, ok)

	assert.Equal(t, "My Llama", entry.Name)
	assert.Equal(t, Cost{Input: 9, Output: 11}, entry.Cost)
	assert.Equal(t, int64(4096), entry.Limit.Context)
	assert.Equal(t, int64(1024), entry.Limit.Output)
	assert.Equal(t, 0.2, entry.Options["temperature"])
	assert.Equal(t, "blue", entry.Headers["X-Team"])

	assert.Equal(t, "oca", entry.ProviderID)
	assert.Equal(t, ModelAPI{ID: "llama-4", URL: "https://code.example/litellm", NPM: "@ai-sdk/openai-compatible"}, entry.API)
	assert.False(t, entry.Capabilities.Reasoning, "reasoning always follows discovery")
	assert.Contains(t, entry.Options, OptionsNamespace)
}

func TestMergeDiscovered_KeepsUserKeysInNamespace(t *testing.T) {
	provider := NewProvider(ProviderID)
	provider.Put(&ModelEntry{
		ID: "llama-4",
		Options: map[string]any{
			OptionsNamespace: map[string]any{"mode": "completion", "team_budget": "q3"},
		},
	})

	MergeDiscovered(provider, sampleResult())
	MergeDiscovered(provider, sampleResult())
	entry, ok := provider.Model("llama-4")
	require.True(t, ok)

	bucket, ok := entry.Options[OptionsNamespace].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "q3", bucket["team_budget"])
	assert.Equal(t, "chat", bucket["mode"], "discovered value replaces the stale one")
	assert.Equal(t, []any{"low", "high"}, bucket["reasoning_effort_options"])
}

func TestMergeDiscovered_NeverDeletes(t *testing.T) {
	provider := NewProvider(ProviderID)
	provider.Put(&ModelEntry{ID: "user-only", Name: "kept"})
	MergeDiscovered(provider, sampleResult())
	MergeDiscovered(provider, &discovery.Result{BaseURL: "https://other.example"})

	entry, ok := provider.Model("user-only")
	require.True(t, ok)
	assert.Equal(t, "kept", entry.Name)
	assert.Equal(t, 3, provider.Len())
}

func TestMergeDiscovered_NilInputs(t *testing.T) {
	assert.Equal(t, 0, MergeDiscovered(nil, sampleResult()))
	assert.Equal(t, 0, MergeDiscovered(NewProvider(""), nil))
}

func TestProvider_ReturnsCopies(t *testing.T) {
	provider := NewProvider(ProviderID)
	MergeDiscovered(provider, sampleResult())
	entry, _ := provider.Model("llama-4")
	entry.Name = "mutated"
	entry.Options[OptionsNamespace].(map[string]any)["mode"] = "mutated"

	fresh, _ := provider.Model("llama-4")
	assert.Equal(t, "Llama 4", fresh.Name)
	assert.Equal(t, "chat", fresh.Options[OptionsNamespace].(map[string]any)["mode"])
}
