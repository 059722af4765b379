package lifecycle

import (
	"errors"
)

var (
	// ErrStreamClosed is returned by Adapter.Run when the event source closes
	// its stream without reporting an error.  No backend can be discovered
	// after this point.
	ErrStreamClosed = errors.New("lifecycle event stream closed")

	// ErrMissingID is reported for a qualifying event without a backend id.
	ErrMissingID = errors.New("event has no backend id")
)
