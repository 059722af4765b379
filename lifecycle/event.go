package lifecycle

import (
	"context"
	"strconv"
	"strings"
)

const (
	// ContainerType is the event Type of container resources.
	ContainerType = "container"

	// StartAction is the only action the adapter acts on.
	StartAction = "start"

	namePrefix = "/"
	protoTCP   = "tcp"
)

// Event is a single lifecycle notification, shaped like a Docker daemon
// event.
type Event struct {
	Type   string `json:"Type"`
	Action string `json:"Action"`
	ID     string `json:"id"`
}

// IsStart reports whether the event announces a started container.
func (e Event) IsStart() bool {
	return e.Type == ContainerType && e.Action == StartAction
}

// Item is one element of an event stream.  Err is set when that single
// element could not be decoded; the stream itself is still healthy.
type Item struct {
	Event Event
	Err   error
}

// Source produces lifecycle events.  The item channel is closed when the
// stream ends; a stream-level failure is delivered on the error channel.
// Both channels stop when ctx is done.
type Source interface {
	Subscribe(ctx context.Context) (<-chan Item, <-chan error)
}

// Backend is what an Inspector knows about a running backend.
type Backend struct {
	// Name as reported by the runtime, e.g. "/web1".
	Name string

	// Address is the backend's network address.
	Address string

	// Ports are the declared "port/protocol" pairs, in declared order.
	Ports []string
}

// Inspector fetches the attributes of a backend by id.
type Inspector interface {
	Inspect(ctx context.Context, id string) (Backend, error)
}

// RoutingKey strips the runtime-imposed leading "/" from a backend name.
func RoutingKey(name string) string {
	return strings.TrimPrefix(name, namePrefix)
}

// SelectPort returns the first tcp port of the given "port/protocol" pairs,
// or zero if none is tcp.  A pair without a protocol is treated as tcp, the
// way the Docker API defaults it.
func SelectPort(ports []string) uint16 {
	for _, p := range ports {
		number, proto, found := strings.Cut(p, "/")
		if !found {
			proto = protoTCP
		}
		if !strings.EqualFold(proto, protoTCP) {
			continue
		}
		n, err := strconv.ParseUint(number, 10, 16)
		if err != nil || n == 0 {
			continue
		}
		return uint16(n)
	}
	return 0
}
