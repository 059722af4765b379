package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

func genLogger() *log.Logger {
	return &log.Logger{
		Out:       os.Stdout,
		Formatter: new(log.TextFormatter),
		Hooks:     make(log.LevelHooks),
		Level:     log.DebugLevel,
	}
}

// waitForLocalTCPListener waits until something accepts connections on the
// given local port.  It returns immediately if the context is cancelled.
func waitForLocalTCPListener(ctx context.Context, port uint16, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := net.DialTimeout("tcp", "localhost:"+strconv.Itoa(int(port)), time.Second)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("timed out waiting for port %v to be active after %v", port, timeout)
}
