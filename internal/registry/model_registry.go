// Package registry models the host-owned provider model registry and merges
// discovered remote models into it.
package registry

import (
	"sort"
	"sync"
)

// ProviderID is the provider key used by the host.
const ProviderID = "oca"

// ModelAPI links a model to the transport that serves it.
type ModelAPI struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	NPM string `json:"npm"`
}

// Modalities lists the content types a model accepts or produces.
type Modalities struct {
	Text  bool `json:"text"`
	Audio bool `json:"audio"`
	Image bool `json:"image"`
	Video bool `json:"video"`
	PDF   bool `json:"pdf"`
}

// Capabilities describes what a model supports.
type Capabilities struct {
	Temperature bool       `json:"temperature"`
	Reasoning   bool       `json:"reasoning"`
	Attachment  bool       `json:"attachment"`
	ToolCall    bool       `json:"toolcall"`
	Input       Modalities `json:"input"`
	Output      Modalities `json:"output"`
}

// CacheCost is the price of cached tokens.
type CacheCost struct {
	Read  float64 `json:"read"`
	Write float64 `json:"write"`
}

// Cost is expressed per million tokens.
type Cost struct {
	Input  float64   `json:"input"`
	Output float64   `json:"output"`
	Cache  CacheCost `json:"cache"`
}

// Limit holds token limits. Zero means unknown.
type Limit struct {
	Context int64 `json:"context"`
	Output  int64 `json:"output"`
	Input   int64 `json:"input,omitempty"`
}

// ModelEntry is one registry record.
type ModelEntry struct {
	ID           string            `json:"id"`
	ProviderID   string            `json:"providerID"`
	Name         string            `json:"name"`
	API          ModelAPI          `json:"api"`
	Status       string            `json:"status,omitempty"`
	Capabilities Capabilities      `json:"capabilities"`
	Cost         Cost              `json:"cost"`
	Limit        Limit             `json:"limit"`
	Options      map[string]any    `json:"options,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// Clone returns a copy that shares nothing mutable with e.
func (e *ModelEntry) Clone() *ModelEntry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Options != nil {
		out.Options = make(map[string]any, len(e.Options))
		for k, v := range e.Options {
			if nested, ok := v.(map[string]any); ok {
				copied := make(map[string]any, len(nested))
				for nk, nv := range nested {
					copied[nk] = nv
				}
				v = copied
			}
			out.Options[k] = v
		}
	}
	if e.Headers != nil {
		out.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			out.Headers[k] = v
		}
	}
	return &out
}

// Provider is the host's registry entry for one provider.
type Provider struct {
	ID string

	mu     sync.RWMutex
	models map[string]*ModelEntry
}

// NewProvider creates an empty provider registry.
func NewProvider(id string) *Provider {
	if id == "" {
		id = ProviderID
	}
	return &Provider{ID: id, models: make(map[string]*ModelEntry)}
}

// Put stores a copy of entry, replacing any existing record with the same id.
func (p *Provider) Put(entry *ModelEntry) {
	if p == nil || entry == nil || entry.ID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.models == nil {
		p.models = make(map[string]*ModelEntry)
	}
	p.models[entry.ID] = entry.Clone()
}

// Model returns a copy of the entry for id.
func (p *Provider) Model(id string) (*ModelEntry, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.models[id]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

// Models returns copies of all entries sorted by id.
func (p *Provider) Models() []*ModelEntry {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	out := make([]*ModelEntry, 0, len(p.models))
	for _, entry := range p.models {
		out = append(out, entry.Clone())
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of entries.
func (p *Provider) Len() int {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.models)
}
