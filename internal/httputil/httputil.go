// Package httputil holds helpers shared by the proxy's HTTP servers.
package httputil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// ServiceProvider is anything that adds routes to a router.
type ServiceProvider interface {
	RegisterService(r *mux.Router)
}

// NewRouter returns a router serving every given provider, with a plain
// text 404 for unknown routes.
func NewRouter(providers ...ServiceProvider) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, "URL %v with method %v NOT FOUND\n", req.URL, req.Method)
	})
	for _, p := range providers {
		p.RegisterService(r)
	}
	return r
}

// NewServer wraps handler with the timeouts used by every listener.  Write
// timeouts are left unset so that streamed and upgraded connections are
// not cut off.
func NewServer(addr string, handler http.Handler, baseCtx context.Context) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
}
