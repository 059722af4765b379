// Package router resolves the Host of an inbound request to a registered
// backend endpoint.
//
// Two key derivation rules exist, one per ingress path:
//
//	HTTP     "web1.localhost:80"  -> "web1"            (port dropped, split on ".")
//	upgrade  "web1:80"            -> "web1"            (split on ":")
//	upgrade  "web1.localhost:80"  -> "web1.localhost"
//
// They are observably different entry points and are kept distinct.
package router

import (
	"strings"

	"github.com/chandankrsah09/Docker-TRA/registry"
)

// Lookup is the read side of a registry.
type Lookup interface {
	Lookup(key string) (registry.Endpoint, bool)
}

// Router resolves hosts against a registry.  It holds no mutable state.
type Router struct {
	lookup Lookup
}

// Route is the result of resolving a host.  Key is set even when no
// endpoint is registered under it.
type Route struct {
	Key      string
	Endpoint registry.Endpoint
}

// New creates a Router reading from the given registry.
func New(lookup Lookup) *Router {
	return &Router{lookup: lookup}
}

// Resolve derives the routing key for a plain HTTP request and looks it up.
func (rt *Router) Resolve(host string) (Route, bool) {
	return rt.resolve(KeyFromHost(host))
}

// ResolveUpgrade derives the routing key for a protocol-upgrade request and
// looks it up.
func (rt *Router) ResolveUpgrade(host string) (Route, bool) {
	return rt.resolve(KeyFromUpgradeHost(host))
}

func (rt *Router) resolve(key string) (Route, bool) {
	route := Route{Key: key}
	if key == "" {
		return route, false
	}
	ep, ok := rt.lookup.Lookup(key)
	route.Endpoint = ep
	return route, ok
}

// KeyFromHost returns the first dot-delimited label of host, ignoring any
// port suffix.
func KeyFromHost(host string) string {
	host = strings.TrimSpace(host)
	// bracketed IPv6 literals never name a backend
	if strings.HasPrefix(host, "[") {
		return ""
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		host = host[:i]
	}
	return host
}

// KeyFromUpgradeHost returns the text of host before the first colon.
func KeyFromUpgradeHost(host string) string {
	host = strings.TrimSpace(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
