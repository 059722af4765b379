package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	docopt "github.com/docopt/docopt-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chandankrsah09/Docker-TRA/cfg"
	"github.com/chandankrsah09/Docker-TRA/dockerapi"
	"github.com/chandankrsah09/Docker-TRA/ingress"
	"github.com/chandankrsah09/Docker-TRA/internal/httputil"
	"github.com/chandankrsah09/Docker-TRA/lifecycle"
	"github.com/chandankrsah09/Docker-TRA/metrics"
	"github.com/chandankrsah09/Docker-TRA/provision"
	"github.com/chandankrsah09/Docker-TRA/registry"
	"github.com/chandankrsah09/Docker-TRA/router"
)

const version = "docker-tra 1.0.0"

const shutdownTimeout = 10 * time.Second

var usage = `Docker-TRA

Routes HTTP requests and protocol upgrades to Docker containers by name,
and starts new containers on demand through a management API.  A request
for web1.localhost is forwarded to the container named web1.

Usage:
  docker-tra [--config=<file>]
  docker-tra show-config [--config=<file>]
  docker-tra -h | --help
  docker-tra --version

Options:
  --config=<file>   YAML configuration file.
  -h --help         Show help.
  --version         Show version.

Environment:
  ENV          set to "production" to log in mozlog format
  DOCKER_HOST  Docker daemon address, unless dockerHost is configured
` + cfg.Usage()

func main() {
	opts, err := docopt.ParseArgs(usage, nil, version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(64)
	}

	conf := cfg.Default()
	if filename, ok := opts["--config"].(string); ok && filename != "" {
		conf, err = cfg.Load(filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(78)
		}
	}

	if showConfig, _ := opts.Bool("show-config"); showConfig {
		if err := writeConfig(os.Stdout, conf); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger, err := newLogger(conf.Logging, os.Getenv("ENV"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(78)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := start(ctx, conf, logger); err != nil {
		logger.WithError(err).Error("docker-tra stopped")
		stop()
		os.Exit(1)
	}
	logger.Info("docker-tra stopped")
}

// start connects to the Docker daemon and runs the proxy until ctx is done
// or a component fails.
func start(ctx context.Context, conf *cfg.Config, logger *log.Logger) error {
	docker, err := dockerapi.New(conf.DockerHost, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = docker.Close()
	}()

	if err := docker.WaitForDaemon(ctx, conf.DaemonWait); err != nil {
		return err
	}

	var source lifecycle.Source = docker
	if conf.EventsFile != "" {
		r, err := openEvents(conf.EventsFile)
		if err != nil {
			return err
		}
		defer func() {
			_ = r.Close()
		}()
		logger.WithField("events-file", conf.EventsFile).Info("reading lifecycle events from file")
		source = lifecycle.NewJSONStream(r)
	}

	return run(ctx, conf, logger, services{
		source:    source,
		inspector: docker,
		engine:    docker,
		metrics:   prometheus.DefaultRegisterer,
	})
}

func openEvents(filename string) (io.ReadCloser, error) {
	if filename == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening events file")
	}
	return f, nil
}

// services are the external collaborators of the proxy.
type services struct {
	source    lifecycle.Source
	inspector lifecycle.Inspector
	engine    provision.Engine
	metrics   prometheus.Registerer
}

// run wires the registry, the lifecycle adapter, the ingress and the
// management API together and serves until ctx is done or one of them
// fails.  A failed lifecycle stream is fatal: without it the routing table
// would silently go stale.
func run(ctx context.Context, conf *cfg.Config, logger *log.Logger, svc services) error {
	reg := registry.New()
	if err := metrics.RegisterRegistrySize(svc.metrics, reg); err != nil {
		return errors.Wrap(err, "registering metrics")
	}

	adapter, err := lifecycle.New(lifecycle.Config{
		Source:    svc.source,
		Inspector: svc.inspector,
		Registry:  reg,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	proxy, err := ingress.New(ingress.Config{
		Router:                router.New(reg),
		Logger:                logger,
		DialTimeout:           conf.DialTimeout,
		ResponseHeaderTimeout: conf.ResponseHeaderTimeout,
		FlushInterval:         conf.FlushInterval,
	})
	if err != nil {
		return err
	}

	api, err := provision.New(svc.engine, reg, conf.Domain, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	proxyServer := httputil.NewServer(conf.ProxyAddr, proxy, ctx)
	managementServer := httputil.NewServer(conf.ManagementAddr, httputil.NewRouter(api), ctx)

	g.Go(func() error {
		return serve(logger, "ingress", proxyServer)
	})
	g.Go(func() error {
		return serve(logger, "management API", managementServer)
	})
	g.Go(func() error {
		return adapter.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		_ = proxyServer.Shutdown(shutdownCtx)
		_ = managementServer.Shutdown(shutdownCtx)
		return nil
	})

	return g.Wait()
}

func serve(logger *log.Logger, name string, server *http.Server) error {
	logger.WithField("server-addr", server.Addr).Infof("starting %s", name)
	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return errors.Wrapf(err, "%s", name)
}
