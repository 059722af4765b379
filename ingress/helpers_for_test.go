package ingress

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/chandankrsah09/Docker-TRA/registry"
	"github.com/chandankrsah09/Docker-TRA/router"
)

func genLogger() *logrus.Logger {
	return &logrus.Logger{
		Out:       os.Stdout,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.DebugLevel,
	}
}

// newTestIngress starts an ingress over a fresh registry
func newTestIngress(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	handler, err := New(Config{
		Router: router.New(reg),
		Logger: genLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, reg
}

// endpointFor returns the registry record pointing at a test server.
func endpointFor(t *testing.T, key string, serverURL string) registry.Endpoint {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return registry.Endpoint{Key: key, Address: host, Port: uint16(port)}
}

func listenOnRandomPort() (net.Listener, uint16, error) {
	// allocate a port dynamically by specifying :0
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, err
	}

	// retrive the selected port from the listener
	_, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		return nil, 0, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, 0, err
	}

	return listener, uint16(port), nil
}

// closedPort returns a local port with nothing listening on it
func closedPort(t *testing.T) uint16 {
	t.Helper()
	listener, port, err := listenOnRandomPort()
	if err != nil {
		t.Fatal(err)
	}
	_ = listener.Close()
	return port
}

// Create an httptest-based server that upgrades its connections to websockets
// and for each connection echoes messages back until the peer closes.  The
// Host header of each handshake is sent on hosts.
func websockEchoServer(t *testing.T, hosts chan<- string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hosts != nil {
			hosts <- r.Host
		}
		upgrader := websocket.Upgrader{
			Subprotocols: websocket.Subprotocols(r),
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		}

		wsconn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("Could not upgrade: %s", err), 500)
			return
		}
		defer wsconn.Close()

		for {
			messageType, payload, err := wsconn.ReadMessage()
			if err != nil {
				return
			}
			if err := wsconn.WriteMessage(messageType, payload); err != nil {
				t.Logf("server WriteMessage: %s", err)
				return
			}
		}
	}))
}

// makeWsURL converts http:// to ws://
func makeWsURL(u string) string {
	return "ws" + u[len("http"):]
}
