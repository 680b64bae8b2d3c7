package registry

import (
	"github.com/shariqriazz/ocaauth/internal/discovery"
	log "github.com/sirupsen/logrus"
)

// OptionsNamespace is the Options key holding discovery fields that have no
// typed counterpart on ModelEntry.
const OptionsNamespace = "oca"

const (
	defaultContextLimit = 128_000
	defaultOutputLimit  = 16_384
	perMillion          = 1_000_000
)

// MergeDiscovered folds a discovery result into p and returns the number of
// entries it created.
//
// Identity and transport linkage (ID, ProviderID, API.ID, API.URL, API.NPM)
// and Capabilities.Reasoning always follow discovery. Every other field is
// only filled while it is still empty, so user customisation survives. Entries
// are never removed, and merging the same result twice is a no-op.
func MergeDiscovered(p *Provider, result *discovery.Result) int {
	if p == nil || result == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.models == nil {
		p.models = make(map[string]*ModelEntry)
	}

	added := 0
	for i := range result.Models {
		m := &result.Models[i]
		entry, exists := p.models[m.ID]
		if !exists {
			entry = newEntry()
			p.models[m.ID] = entry
			added++
		}
		mergeModel(entry, p.ID, result.BaseURL, m)
	}
	if added > 0 {
		log.Debugf("registry: merged %d discovered model(s) into %s, %d new", len(result.Models), p.ID, added)
	}
	return added
}

func newEntry() *ModelEntry {
	return &ModelEntry{
		Capabilities: Capabilities{
			Temperature: true,
			ToolCall:    true,
			Input:       Modalities{Text: true},
			Output:      Modalities{Text: true},
		},
		Options: map[string]any{},
		Headers: map[string]string{},
	}
}

func mergeModel(entry *ModelEntry, providerID, baseURL string, m *discovery.Model) {
	entry.ID = m.ID
	entry.ProviderID = providerID
	entry.API.ID = m.ID
	entry.API.URL = baseURL
	entry.API.NPM = m.Transport.NPM()
	entry.Capabilities.Reasoning = m.Reasoning

	if entry.Name == "" {
		entry.Name = m.Name
		if entry.Name == "" {
			entry.Name = m.ID
		}
	}
	if entry.Status == "" {
		entry.Status = "active"
	}

	if entry.Limit.Context == 0 {
		entry.Limit.Context = firstPositive(m.ContextWindow, m.MaxInputTokens, defaultContextLimit)
	}
	if entry.Limit.Output == 0 {
		entry.Limit.Output = firstPositive(m.MaxOutputTokens, defaultOutputLimit)
	}
	if entry.Limit.Input == 0 && m.MaxInputTokens > 0 {
		entry.Limit.Input = m.MaxInputTokens
	}

	if entry.Cost.Input == 0 && m.InputCostPerToken > 0 {
		entry.Cost.Input = m.InputCostPerToken * perMillion
	}
	if entry.Cost.Output == 0 && m.OutputCostPerToken > 0 {
		entry.Cost.Output = m.OutputCostPerToken * perMillion
	}

	if m.SupportsVision != nil && *m.SupportsVision {
		if !entry.Capabilities.Attachment {
			entry.Capabilities.Attachment = true
		}
		if !entry.Capabilities.Input.Image {
			entry.Capabilities.Input.Image = true
		}
	}

	if len(m.Extra) > 0 {
		if entry.Options == nil {
			entry.Options = make(map[string]any)
		}
		// Discovered keys win; keys only the user set stay.
		existing, _ := entry.Options[OptionsNamespace].(map[string]any)
		bucket := make(map[string]any, len(existing)+len(m.Extra))
		for k, v := range existing {
			bucket[k] = v
		}
		for k, v := range m.Extra {
			bucket[k] = v
		}
		entry.Options[OptionsNamespace] = bucket
	}
}

func firstPositive(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
