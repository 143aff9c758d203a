// Package providers contains the hot list sources and the registry that
// exposes them by name.
package providers

import (
	"encoding/json"
	"sort"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/briangreenhill/hotlist/internal/hotlist"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

// Query carries caller-supplied options such as a list type
type Query map[string]string

// Get returns q[key], or def when the key is missing or empty
func (q Query) Get(key, def string) string {
	if v, ok := q[key]; ok && v != "" {
		return v
	}
	return def
}

// Provider defines the interface that every hot list source implements
type Provider interface {
	// Name is the route segment, e.g. "bilibili"
	Name() string

	Info() hotlist.Info

	// Request describes the upstream call for q. It must be deterministic so
	// that identical queries share a cache key.
	Request(q Query) upstream.Request

	// Parse transforms an upstream body into items
	Parse(body []byte) ([]hotlist.Item, error)
}

// Registry manages available providers
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider, replacing any provider with the same name
func (r *Registry) Register(provider Provider) {
	r.providers[provider.Name()] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	provider, exists := r.providers[name]
	return provider, exists
}

// List returns all registered provider names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos returns the info of every provider in name order
func (r *Registry) Infos() []hotlist.Info {
	names := r.List()
	infos := make([]hotlist.Info, 0, len(names))
	for _, name := range names {
		infos = append(infos, r.providers[name].Info())
	}
	return infos
}

// decode unmarshals an upstream body, reporting failures as schema errors so
// they are never cached.
func decode[T any](platform string, body []byte) (T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return out, platformerrors.WithContext(
			platformerrors.Wrapf(err, platformerrors.CodeSchemaFailed, "decode %s response", platform),
			"platform", platform,
		)
	}
	return out, nil
}

// upstreamRejected reports an application-level error code inside a 200 body
func upstreamRejected(platform string, code any, message string) error {
	err := platformerrors.Newf(platformerrors.CodeUnavailable, "%s returned code %v: %s", platform, code, message)
	return platformerrors.WithContext(err, "platform", platform)
}
