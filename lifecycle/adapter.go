// Package lifecycle turns a stream of backend lifecycle events into registry
// writes.
//
// runtime events ----> [ adapter ] ----> registry
//
// Only "container start" events are acted on.  Each one is completed,
// including the inspection call, before the next is read, so two starts for
// the same name can never interleave into a mixed record.
package lifecycle

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	nullLog "github.com/sirupsen/logrus/hooks/test"

	"github.com/chandankrsah09/Docker-TRA/metrics"
	"github.com/chandankrsah09/Docker-TRA/registry"
)

// Registrar is the write side of a registry.
type Registrar interface {
	Register(ep registry.Endpoint) (registry.Endpoint, bool)
}

// Outcome actions
const (
	ActionRegistered = "registered"
	ActionIgnored    = "ignored"
	ActionFailed     = "failed"
)

// Outcome is the result of handling one stream item.
type Outcome struct {
	Event    Event
	Action   string
	Endpoint registry.Endpoint
	Err      error
}

// Config contains the collaborators of an Adapter.
type Config struct {
	Source    Source
	Inspector Inspector
	Registry  Registrar

	// Logger is used to log adapter events.  Defaults to a null logger.
	Logger *logrus.Logger

	// OnOutcome, if set, is called after each item has been handled.
	OnOutcome func(Outcome)
}

// Adapter consumes a Source and writes started backends into a registry.
type Adapter struct {
	source    Source
	inspector Inspector
	registry  Registrar
	logger    *logrus.Logger
	onOutcome func(Outcome)
}

// New creates an Adapter.  Source, Inspector and Registry are required.
func New(conf Config) (*Adapter, error) {
	if conf.Source == nil || conf.Inspector == nil || conf.Registry == nil {
		return nil, errors.New("lifecycle: source, inspector and registry are required")
	}
	a := &Adapter{
		source:    conf.Source,
		inspector: conf.Inspector,
		registry:  conf.Registry,
		logger:    conf.Logger,
		onOutcome: conf.OnOutcome,
	}
	if a.logger == nil {
		logger, _ := nullLog.NewNullLogger()
		a.logger = logger
	}
	return a, nil
}

// Run consumes the source until ctx is done or the stream fails.  It returns
// nil only when ctx was cancelled; any other return means discovery has
// stopped for good.
func (a *Adapter) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items, errs := a.source.Subscribe(ctx)
	a.logger.Info("consuming lifecycle events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				// no error will follow; keep draining items
				errs = nil
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "lifecycle event stream failed")
		case item, ok := <-items:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				// prefer the failure, if the source reported one
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						return errors.Wrap(err, "lifecycle event stream failed")
					}
				default:
				}
				return ErrStreamClosed
			}
			a.report(a.Handle(ctx, item))
		}
	}
}

// Handle processes a single stream item and reports what happened.
func (a *Adapter) Handle(ctx context.Context, item Item) Outcome {
	out := Outcome{Event: item.Event}

	if item.Err != nil {
		out.Action = ActionFailed
		out.Err = errors.Wrap(item.Err, "malformed event")
		return out
	}
	if !item.Event.IsStart() {
		out.Action = ActionIgnored
		return out
	}
	if item.Event.ID == "" {
		out.Action = ActionFailed
		out.Err = ErrMissingID
		return out
	}

	backend, err := a.inspector.Inspect(ctx, item.Event.ID)
	if err != nil {
		out.Action = ActionFailed
		out.Err = errors.Wrapf(err, "inspecting %s", item.Event.ID)
		return out
	}

	ep := registry.Endpoint{
		Key:     RoutingKey(backend.Name),
		Address: backend.Address,
		Port:    SelectPort(backend.Ports),
	}
	if ep.Key == "" {
		out.Action = ActionFailed
		out.Err = errors.Errorf("backend %s has no name", item.Event.ID)
		return out
	}

	a.registry.Register(ep)
	out.Action = ActionRegistered
	out.Endpoint = ep
	return out
}

func (a *Adapter) report(out Outcome) {
	metrics.LifecycleEvents.WithLabelValues(out.Action).Inc()

	switch out.Action {
	case ActionRegistered:
		fields := logrus.Fields{
			"container-id": out.Event.ID,
			"routing-key":  out.Endpoint.Key,
			"address":      out.Endpoint.Address,
		}
		if out.Endpoint.HasPort() {
			a.logger.WithFields(fields).Infof("registering %s -> %s", out.Endpoint.Key, out.Endpoint.URL("http"))
		} else {
			a.logger.WithFields(fields).Warnf("registering %s without a tcp port; requests will fail", out.Endpoint.Key)
		}
	case ActionFailed:
		a.logger.WithFields(logrus.Fields{
			"container-id": out.Event.ID,
		}).WithError(out.Err).Error("error processing event")
	default:
		a.logger.WithFields(logrus.Fields{
			"container-id": out.Event.ID,
			"type":         out.Event.Type,
			"action":       out.Event.Action,
		}).Debug("ignoring event")
	}

	if a.onOutcome != nil {
		a.onOutcome(out)
	}
}
