package ingress

import (
	"errors"
)

var (
	// ErrNoPort is returned when a backend is registered but exposes no tcp
	// port, so there is nothing to forward to.
	ErrNoPort = errors.New("backend exposes no tcp port")

	// ErrHijackUnsupported is returned when the ResponseWriter cannot hand
	// over the raw connection, e.g. on HTTP/2.
	ErrHijackUnsupported = errors.New("connection does not support hijacking")

	// ErrMissingRouter is returned by New when no router is configured.
	ErrMissingRouter = errors.New("ingress: router is required")
)
