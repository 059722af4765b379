// Package registry holds the live mapping from routing key to backend
// endpoint. It is the only shared mutable state of the proxy: the lifecycle
// adapter writes to it and the ingress dispatchers read from it.
package registry

import (
	"net"
	"net/url"
	"sort"
	"strconv"
	"sync"
)

// Endpoint is the address at which a backend accepts connections.  Values
// are copied in and out of the Registry, so a record is never observed
// half-written.
type Endpoint struct {
	// Key is the routing key, derived from the backend's name.
	Key string `json:"key"`

	// Address is the backend's reachable network address, usually an
	// internal IP.
	Address string `json:"address"`

	// Port is the first exposed tcp port of the backend, or zero if it
	// exposes none.
	Port uint16 `json:"port,omitempty"`
}

// HasPort reports whether the endpoint can be dispatched to at all.
func (e Endpoint) HasPort() bool {
	return e.Port != 0
}

// HostPort returns "address:port".  The result is only meaningful when
// HasPort is true.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(int(e.Port)))
}

// URL returns the origin of the endpoint for the given scheme, e.g.
// http://172.17.0.5:4000
func (e Endpoint) URL(scheme string) *url.URL {
	return &url.URL{Scheme: scheme, Host: e.HostPort()}
}

// Registry is a concurrency-safe map of routing key to Endpoint.
// New registries can be created with registry.New()
type Registry struct {
	m         sync.RWMutex
	endpoints map[string]Endpoint
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		endpoints: make(map[string]Endpoint),
	}
}

// Register stores ep under ep.Key, replacing any previous entry for that
// key.  The replaced entry, if any, is returned.
func (r *Registry) Register(ep Endpoint) (previous Endpoint, replaced bool) {
	r.m.Lock()
	defer r.m.Unlock()
	previous, replaced = r.endpoints[ep.Key]
	r.endpoints[ep.Key] = ep
	return previous, replaced
}

// Lookup returns the endpoint registered for key.
func (r *Registry) Lookup(key string) (Endpoint, bool) {
	r.m.RLock()
	defer r.m.RUnlock()
	ep, ok := r.endpoints[key]
	return ep, ok
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return len(r.endpoints)
}

// Snapshot returns a copy of all registered endpoints, sorted by key.
func (r *Registry) Snapshot() []Endpoint {
	r.m.RLock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}
	r.m.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}
