// Package dockerapi connects the proxy to a Docker daemon.  A Client is the
// lifecycle event source, the backend inspector and the provisioning engine.
package dockerapi

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	nullLog "github.com/sirupsen/logrus/hooks/test"

	"github.com/chandankrsah09/Docker-TRA/lifecycle"
)

// engineAPI is the part of the Docker SDK client used here.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	Close() error
}

// Client talks to a single Docker daemon.
type Client struct {
	api    engineAPI
	logger *logrus.Logger
}

// New connects to the daemon at host, or to the one named by the DOCKER_*
// environment variables when host is empty.
func New(host string, logger *logrus.Logger) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating docker client")
	}
	return newClient(cli, logger), nil
}

func newClient(api engineAPI, logger *logrus.Logger) *Client {
	if logger == nil {
		logger, _ = nullLog.NewNullLogger()
	}
	return &Client{api: api, logger: logger}
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.api.Close()
}

// WaitForDaemon pings the daemon with exponential backoff until it answers,
// maxWait elapses or ctx is done.
func (c *Client) WaitForDaemon(ctx context.Context, maxWait time.Duration) error {
	settings := backoff.NewExponentialBackOff()
	settings.MaxElapsedTime = maxWait

	ping := func() error {
		_, err := c.api.Ping(ctx)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.WithError(err).Warnf("docker daemon not reachable, retrying in %s", wait)
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(settings, ctx), notify); err != nil {
		return errors.Wrap(err, "docker daemon unreachable")
	}
	return nil
}

// Subscribe implements lifecycle.Source on top of the daemon event stream.
// Only container events are requested from the daemon; the adapter does the
// rest of the filtering.
func (c *Client) Subscribe(ctx context.Context) (<-chan lifecycle.Item, <-chan error) {
	opts := events.ListOptions{
		Filters: filters.NewArgs(filters.Arg("type", string(events.ContainerEventType))),
	}
	msgs, errs := c.api.Events(ctx, opts)

	items := make(chan lifecycle.Item)
	out := make(chan error, 1)

	go func() {
		defer close(items)
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				if ctx.Err() != nil {
					return
				}
				if err == nil {
					err = io.EOF
				}
				out <- errors.Wrap(err, "docker event stream")
				return
			case msg := <-msgs:
				select {
				case items <- lifecycle.Item{Event: eventFromMessage(msg)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return items, out
}

// Inspect implements lifecycle.Inspector.
func (c *Client) Inspect(ctx context.Context, id string) (lifecycle.Backend, error) {
	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return lifecycle.Backend{}, errors.Wrapf(err, "inspecting container %s", id)
	}
	return backendFromInspect(info), nil
}

// ImageExists reports whether ref ("image:tag") is one of the local images'
// repo tags.
func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	summaries, err := c.api.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, errors.Wrap(err, "listing images")
	}
	for _, s := range summaries {
		for _, tag := range s.RepoTags {
			if tag == ref {
				return true, nil
			}
		}
	}
	return false, nil
}

// PullImage pulls ref and waits for the pull to finish.  Errors reported in
// the progress stream are returned.
func (c *Client) PullImage(ctx context.Context, ref string) error {
	c.logger.WithField("image", ref).Info("pulling image")
	progress, err := c.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return errors.Wrapf(err, "pulling %s", ref)
	}
	defer progress.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(progress, io.Discard, 0, false, nil); err != nil {
		return errors.Wrapf(err, "pulling %s", ref)
	}
	return nil
}

// CreateAndStart creates a container from ref, starts it and returns its
// name without the leading "/".  The container is removed by the daemon
// when it exits.
func (c *Client) CreateAndStart(ctx context.Context, ref string) (string, error) {
	created, err := c.api.ContainerCreate(ctx,
		&container.Config{
			Image: ref,
			Tty:   true,
		},
		&container.HostConfig{
			AutoRemove: true,
		},
		nil, nil, "")
	if err != nil {
		return "", errors.Wrapf(err, "creating container from %s", ref)
	}
	for _, w := range created.Warnings {
		c.logger.WithField("container-id", created.ID).Warn(w)
	}

	if err := c.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", errors.Wrapf(err, "starting container %s", created.ID)
	}

	info, err := c.api.ContainerInspect(ctx, created.ID)
	if err != nil {
		return "", errors.Wrapf(err, "inspecting container %s", created.ID)
	}
	name := lifecycle.RoutingKey(backendFromInspect(info).Name)
	c.logger.WithFields(logrus.Fields{
		"container-id": created.ID,
		"routing-key":  name,
	}).Info("container started")
	return name, nil
}

func eventFromMessage(msg events.Message) lifecycle.Event {
	return lifecycle.Event{
		Type:   string(msg.Type),
		Action: string(msg.Action),
		ID:     msg.Actor.ID,
	}
}

// backendFromInspect extracts name, address and exposed ports.  The address
// is the default bridge address, or else the address on the first attached
// network by name.  Ports are sorted the way the daemon orders them in its
// JSON (lexicographically).
func backendFromInspect(info types.ContainerJSON) lifecycle.Backend {
	var b lifecycle.Backend
	if info.ContainerJSONBase != nil {
		b.Name = info.Name
	}

	if ns := info.NetworkSettings; ns != nil {
		b.Address = ns.IPAddress
		if b.Address == "" {
			names := make([]string, 0, len(ns.Networks))
			for name := range ns.Networks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if es := ns.Networks[name]; es != nil && es.IPAddress != "" {
					b.Address = es.IPAddress
					break
				}
			}
		}
	}

	if info.Config != nil {
		for p := range info.Config.ExposedPorts {
			b.Ports = append(b.Ports, p.Port()+"/"+p.Proto())
		}
		sort.Strings(b.Ports)
	}
	return b
}
