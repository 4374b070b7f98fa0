// Package modules describes the content sources downloads are resolved from.
package modules

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DefaultUserAgent is sent when neither the config nor the module sets one.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

// Capabilities advertise which optional extraction strategies a module supports.
type Capabilities struct {
	Async       bool
	StreamAsync bool
}

// Module is a configured content source.
type Module struct {
	ID      string
	Name    string
	BaseURL string
	// Headers are explicit per-module request headers. When empty the global
	// default header set applies.
	Headers      map[string]string
	Capabilities Capabilities
	// StreamAPI is the endpoint template used by the async strategy; "{url}"
	// is replaced with the escaped episode URL.
	StreamAPI string
	// Selector is the CSS selector used by the stream-async strategy.
	Selector string
}

// OriginHeaders returns Origin and Referer derived from the module's base URL.
func (m *Module) OriginHeaders() map[string]string {
	out := make(map[string]string, 2)
	if m == nil || m.BaseURL == "" {
		return out
	}
	u, err := url.Parse(m.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return out
	}
	origin := u.Scheme + "://" + u.Host
	out["Origin"] = origin
	out["Referer"] = origin + "/"
	return out
}

// Registry holds modules by ID.
type Registry struct {
	modules map[string]*Module
}

// NewRegistry creates a registry from the given modules.
func NewRegistry(mods ...*Module) *Registry {
	r := &Registry{modules: make(map[string]*Module, len(mods))}
	for _, m := range mods {
		r.modules[strings.ToLower(m.ID)] = m
	}
	return r
}

// Get returns the module with the given ID.
func (r *Registry) Get(id string) (*Module, error) {
	m, ok := r.modules[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", id)
	}
	return m, nil
}

// List returns all modules sorted by ID.
func (r *Registry) List() []*Module {
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
