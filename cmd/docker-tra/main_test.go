package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandankrsah09/Docker-TRA/cfg"
	"github.com/chandankrsah09/Docker-TRA/lifecycle"
	"github.com/chandankrsah09/Docker-TRA/registry"
)

type fakeInspector map[string]lifecycle.Backend

func (f fakeInspector) Inspect(ctx context.Context, id string) (lifecycle.Backend, error) {
	b, ok := f[id]
	if !ok {
		return lifecycle.Backend{}, fmt.Errorf("no such container: %s", id)
	}
	return b, nil
}

type fakeEngine struct{}

func (fakeEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	return true, nil
}

func (fakeEngine) PullImage(ctx context.Context, ref string) error {
	return nil
}

func (fakeEngine) CreateAndStart(ctx context.Context, ref string) (string, error) {
	return "web2", nil
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	_, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return uint16(port)
}

func testConfig(t *testing.T) (*cfg.Config, uint16, uint16) {
	conf := cfg.Default()
	proxyPort, managementPort := freePort(t), freePort(t)
	conf.ProxyAddr = "127.0.0.1:" + strconv.Itoa(int(proxyPort))
	conf.ManagementAddr = "127.0.0.1:" + strconv.Itoa(int(managementPort))
	return conf, proxyPort, managementPort
}

func TestRunRoutesStartedBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello from web1")
	}))
	defer backend.Close()
	_, backendPort, _ := net.SplitHostPort(backend.Listener.Addr().String())

	conf, proxyPort, managementPort := testConfig(t)
	events, eventsWriter := io.Pipe()
	defer eventsWriter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, conf, genLogger(), services{
			source: lifecycle.NewJSONStream(events),
			inspector: fakeInspector{
				"c0ffee": {Name: "/web1", Address: "127.0.0.1", Ports: []string{backendPort + "/tcp"}},
			},
			engine:  fakeEngine{},
			metrics: prometheus.NewRegistry(),
		})
	}()

	require.NoError(t, waitForLocalTCPListener(ctx, proxyPort, 10*time.Second))
	require.NoError(t, waitForLocalTCPListener(ctx, managementPort, 10*time.Second))

	_, err := io.WriteString(eventsWriter,
		`{"Type":"container","Action":"create","id":"c0ffee"}`+"\n"+
			`{"Type":"container","Action":"start","id":"c0ffee"}`+"\n")
	require.NoError(t, err)

	routesURL := "http://" + conf.ManagementAddr + "/routes"
	assert.Eventually(t, func() bool {
		resp, err := http.Get(routesURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var routes []registry.Endpoint
		if err := json.NewDecoder(resp.Body).Decode(&routes); err != nil {
			return false
		}
		return len(routes) == 1 && routes[0].Key == "web1"
	}, 10*time.Second, 50*time.Millisecond)

	req, err := http.NewRequest("GET", "http://"+conf.ProxyAddr+"/", nil)
	require.NoError(t, err)
	req.Host = "web1.localhost"
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello from web1", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is a clean shutdown")
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunFailsWhenStreamEnds(t *testing.T) {
	conf, _, _ := testConfig(t)
	events, eventsWriter := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), conf, genLogger(), services{
			source:    lifecycle.NewJSONStream(events),
			inspector: fakeInspector{},
			engine:    fakeEngine{},
			metrics:   prometheus.NewRegistry(),
		})
	}()

	_ = eventsWriter.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, lifecycle.ErrStreamClosed)
	case <-time.After(15 * time.Second):
		t.Fatal("run kept going without a lifecycle stream")
	}
}

func TestRunFailsOnBusyAddress(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	conf, _, _ := testConfig(t)
	conf.ProxyAddr = l.Addr().String()
	events, eventsWriter := io.Pipe()
	defer eventsWriter.Close()

	err = run(context.Background(), conf, genLogger(), services{
		source:    lifecycle.NewJSONStream(events),
		inspector: fakeInspector{},
		engine:    fakeEngine{},
		metrics:   prometheus.NewRegistry(),
	})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logging := cfg.Default().Logging

	logger, err := newLogger(logging, "")
	require.NoError(t, err)
	assert.Equal(t, "info", logger.GetLevel().String())

	logging.Level = "verbose"
	_, err = newLogger(logging, "")
	assert.Error(t, err)
}
