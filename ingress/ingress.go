package ingress

import (
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"github.com/sirupsen/logrus"
	nullLog "github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/net/http/httpguts"

	"github.com/chandankrsah09/Docker-TRA/metrics"
	"github.com/chandankrsah09/Docker-TRA/router"
)

const (
	notFoundBody   = "404 Not Found"
	badGatewayBody = "502 Bad Gateway"

	defaultDialTimeout   = 10 * time.Second
	defaultFlushInterval = 100 * time.Millisecond
)

// Resolver maps a Host header to a registered endpoint, with one rule per
// ingress path.
type Resolver interface {
	Resolve(host string) (router.Route, bool)
	ResolveUpgrade(host string) (router.Route, bool)
}

// Config contains the run time parameters for the ingress.
type Config struct {
	// Router resolves Host headers to backends.
	Router Resolver

	// Logger is used to log ingress events.  Defaults to a null logger.
	Logger *logrus.Logger

	// DialTimeout bounds connecting to a backend, for both paths.
	DialTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for a backend's response headers
	// on the http path.  Zero means no limit.
	ResponseHeaderTimeout time.Duration

	// FlushInterval is how often streamed response bodies are flushed to
	// the client.
	FlushInterval time.Duration
}

// proxy dispatches requests to registered backends.
// A new proxy can be created by using ingress.New()
type proxy struct {
	router        Resolver
	logger        *logrus.Logger
	transport     http.RoundTripper
	dialer        *net.Dialer
	flushInterval time.Duration
}

// New creates a new ingress and wraps it as an http.Handler.
func New(conf Config) (http.Handler, error) {
	return newProxy(conf)
}

func newProxy(conf Config) (*proxy, error) {
	if conf.Router == nil {
		return nil, ErrMissingRouter
	}

	p := &proxy{
		router:        conf.Router,
		logger:        conf.Logger,
		flushInterval: conf.FlushInterval,
	}
	if p.logger == nil {
		logger, _ := nullLog.NewNullLogger()
		p.logger = logger
	}
	if p.flushInterval == 0 {
		p.flushInterval = defaultFlushInterval
	}

	dialTimeout := conf.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = defaultDialTimeout
	}
	p.dialer = &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.DialContext = p.dialer.DialContext
	transport.ResponseHeaderTimeout = conf.ResponseHeaderTimeout
	p.transport = transport

	return p, nil
}

// ServeHTTP implements http.Handler so that the ingress may be used as a
// handler in a Mux or http.Server
func (p *proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isUpgrade(r) {
		p.serveUpgrade(w, r)
		return
	}
	p.serveRequest(w, r)
}

// isUpgrade reports whether r asks to switch protocols, e.g. to websocket.
func isUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") != "" &&
		httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade")
}

// serveRequest forwards a plain http request to the backend named by its
// Host.
func (p *proxy) serveRequest(w http.ResponseWriter, r *http.Request) {
	route, ok := p.router.Resolve(r.Host)
	key, ep := route.Key, route.Endpoint
	if !ok {
		p.logf(key, r.RemoteAddr, "no backend for host=%s", r.Host)
		metrics.Dispatches.WithLabelValues("http", metrics.ResultNotFound).Inc()
		writeText(w, http.StatusNotFound, notFoundBody)
		return
	}
	if !ep.HasPort() {
		p.logerrorf(key, r.RemoteAddr, "cannot forward: %v", ErrNoPort)
		metrics.Dispatches.WithLabelValues("http", metrics.ResultNoPort).Inc()
		writeText(w, http.StatusBadGateway, badGatewayBody+": "+ErrNoPort.Error())
		return
	}

	target := ep.URL("http")
	p.logf(key, r.RemoteAddr, "forwarding %s%s -> %s", r.Host, r.URL.Path, target)

	failed := false
	reverseProxy := &httputil.ReverseProxy{
		// SetURL also rewrites the outbound Host to the target's
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			keepForwardingHeaders(pr)
		},
		Transport: p.transport,
		// support streaming responses that are not detected as such
		FlushInterval: p.flushInterval,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			failed = true
			if r.Context().Err() != nil {
				// the client went away; nobody to answer
				p.logf(key, r.RemoteAddr, "client disconnected: %v", err)
				return
			}
			p.logerrorf(key, r.RemoteAddr, "backend %s unreachable: %v", target, err)
			writeText(w, http.StatusBadGateway, badGatewayBody)
		},
	}
	reverseProxy.ServeHTTP(w, r)

	if failed {
		metrics.Dispatches.WithLabelValues("http", metrics.ResultBackendError).Inc()
		return
	}
	metrics.Dispatches.WithLabelValues("http", metrics.ResultForwarded).Inc()
}

// forwardingHeaders are stripped from the outbound request by
// httputil.ReverseProxy when Rewrite is used.  The client's values are
// passed through unchanged; the proxy adds none of its own.
var forwardingHeaders = []string{
	"Forwarded",
	"X-Forwarded-For",
	"X-Forwarded-Host",
	"X-Forwarded-Proto",
}

func keepForwardingHeaders(pr *httputil.ProxyRequest) {
	for _, h := range forwardingHeaders {
		if v, ok := pr.In.Header[h]; ok {
			pr.Out.Header[h] = append([]string(nil), v...)
		}
	}
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

// ingress logging utilities

func (p *proxy) logf(key string, remoteAddr string, format string, v ...interface{}) {
	p.logger.WithFields(logrus.Fields{
		"routing-key": key,
		"remote-addr": remoteAddr,
	}).Infof(format, v...)
}

func (p *proxy) logerrorf(key string, remoteAddr string, format string, v ...interface{}) {
	p.logger.WithFields(logrus.Fields{
		"routing-key": key,
		"remote-addr": remoteAddr,
	}).Errorf(format, v...)
}
