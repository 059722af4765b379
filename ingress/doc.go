// Package ingress is the Layer-7 front of the proxy.  Incoming http requests
// and protocol-upgrade (websocket) requests are routed by Host to the backend
// container registered under that name.
//
// browser ----> [ ingress ] ----> container (address:port)
//
// Plain requests are forwarded with an httputil.ReverseProxy.  Upgrade
// requests are hijacked: the handshake is replayed to the backend and bytes
// are then relayed both ways until either side closes.
package ingress
