package ingress

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/chandankrsah09/Docker-TRA/metrics"
)

// rawNotFound is written verbatim on the client connection when an upgrade
// names no registered backend.
const rawNotFound = "HTTP/1.1 404 Not Found\r\n\r\n"

// serveUpgrade bridges a protocol-upgrade request to the backend named by
// the text of its Host before the first colon.
func (p *proxy) serveUpgrade(w http.ResponseWriter, r *http.Request) {
	route, ok := p.router.ResolveUpgrade(r.Host)
	key, ep := route.Key, route.Endpoint
	if !ok {
		p.logf(key, r.RemoteAddr, "no backend for upgrade host=%s", r.Host)
		metrics.Dispatches.WithLabelValues("upgrade", metrics.ResultNotFound).Inc()
		p.rejectUpgrade(w, r, key)
		return
	}
	if !ep.HasPort() {
		p.logerrorf(key, r.RemoteAddr, "cannot upgrade: %v", ErrNoPort)
		metrics.Dispatches.WithLabelValues("upgrade", metrics.ResultNoPort).Inc()
		failUpgrade(w, http.StatusBadGateway, badGatewayBody+": "+ErrNoPort.Error())
		return
	}

	p.logf(key, r.RemoteAddr, "upgrading %s for %s -> %s", r.Header.Get("Upgrade"), r.Host, ep.HostPort())
	backendConn, err := p.dialer.DialContext(r.Context(), "tcp", ep.HostPort())
	if err != nil {
		p.logerrorf(key, r.RemoteAddr, "could not dial backend %s: %v", ep.HostPort(), err)
		metrics.Dispatches.WithLabelValues("upgrade", metrics.ResultBackendError).Inc()
		failUpgrade(w, http.StatusBadGateway, badGatewayBody)
		return
	}

	clientConn, buffered, err := hijack(w)
	if err != nil {
		_ = backendConn.Close()
		p.logerrorf(key, r.RemoteAddr, "could not take over client connection: %v", err)
		metrics.Dispatches.WithLabelValues("upgrade", metrics.ResultBackendError).Inc()
		failUpgrade(w, http.StatusInternalServerError, err.Error())
		return
	}

	// replay the handshake, then whatever the client sent after it
	if err := replayHandshake(backendConn, r, buffered.Reader); err != nil {
		p.logerrorf(key, r.RemoteAddr, "could not replay handshake: %v", err)
		metrics.Dispatches.WithLabelValues("upgrade", metrics.ResultBackendError).Inc()
		_ = backendConn.Close()
		_ = clientConn.Close()
		return
	}

	metrics.Dispatches.WithLabelValues("upgrade", metrics.ResultForwarded).Inc()
	up, down := p.relay(r, key, clientConn, backendConn)
	p.logf(key, r.RemoteAddr, "relay closed: %d bytes up, %d bytes down", up, down)
}

// failUpgrade answers an upgrade that cannot be bridged.  The client
// connection is closed after the response, never reused.
func failUpgrade(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Connection", "close")
	writeText(w, code, body)
}

// rejectUpgrade writes a bare 404 status line on the raw connection and
// closes it, so no partial upgrade ever happens.
func (p *proxy) rejectUpgrade(w http.ResponseWriter, r *http.Request, key string) {
	conn, _, err := hijack(w)
	if err != nil {
		failUpgrade(w, http.StatusNotFound, notFoundBody)
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	if _, err := io.WriteString(conn, rawNotFound); err != nil {
		p.logerrorf(key, r.RemoteAddr, "could not write 404 handshake: %v", err)
	}
}

func hijack(w http.ResponseWriter) (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, ErrHijackUnsupported
	}
	return hj.Hijack()
}

func replayHandshake(backend net.Conn, r *http.Request, pending *bufio.Reader) error {
	if err := r.Write(backend); err != nil {
		return err
	}
	if n := pending.Buffered(); n > 0 {
		head, err := pending.Peek(n)
		if err != nil {
			return err
		}
		if _, err := backend.Write(head); err != nil {
			return err
		}
	}
	return nil
}

// relay copies bytes between the two connections until either side closes,
// the copy fails or the request context ends.  Both connections are closed
// on return.
func (p *proxy) relay(r *http.Request, key string, client net.Conn, backend net.Conn) (up int64, down int64) {
	s := newStopper()
	var wg sync.WaitGroup
	var nUp, nDown atomic.Int64

	copyHalf := func(dst net.Conn, src net.Conn, n *atomic.Int64) {
		defer wg.Done()
		defer s.stop()
		written, err := io.Copy(dst, src)
		n.Add(written)
		if err != nil && !s.isStopped() {
			p.logf(key, r.RemoteAddr, "relay copy ended: %v", err)
		}
	}

	wg.Add(2)
	go copyHalf(backend, client, &nUp)
	go copyHalf(client, backend, &nDown)

	// server shutdown cancels the request context
	go func() {
		select {
		case <-r.Context().Done():
			s.stop()
		case <-s.done:
		}
	}()

	s.wait()
	_ = client.Close()
	_ = backend.Close()
	wg.Wait()

	return nUp.Load(), nDown.Load()
}
