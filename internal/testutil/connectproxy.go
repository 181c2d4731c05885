package testutil

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// ConnectProxy is an in-process HTTP CONNECT proxy for tests. Its
// misbehavior knobs must be set before Start.
type ConnectProxy struct {
	// Refuse rejects every CONNECT with 502 Bad Gateway.
	Refuse bool

	// Stall accepts connections and never answers the CONNECT request.
	Stall bool

	// Delay waits before reading the CONNECT request.
	Delay time.Duration

	// ForwardTo, when set, overrides the requested target address, so tests
	// can tunnel names that do not resolve.
	ForwardTo string

	ln   net.Listener
	open atomic.Int64
}

// Start begins listening on 127.0.0.1 and serving tunnels.
func (p *ConnectProxy) Start(t *testing.T, ctx context.Context) {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	p.ln = ln
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go p.handle(ctx, c)
		}
	}()
}

// Addr returns the proxy's host:port.
func (p *ConnectProxy) Addr() string { return p.ln.Addr().String() }

// HostPort returns the proxy's host and numeric port separately.
func (p *ConnectProxy) HostPort(t *testing.T) (string, int) {
	t.Helper()
	return splitHostPort(t, p.Addr())
}

// Open reports client connections currently held open by the proxy. It
// drops back to zero once clients have closed their side.
func (p *ConnectProxy) Open() int64 { return p.open.Load() }

func (p *ConnectProxy) handle(ctx context.Context, c net.Conn) {
	p.open.Add(1)
	defer p.open.Add(-1)
	defer c.Close()

	if p.Stall {
		// Swallow the request and go quiet until the client gives up.
		_, _ = io.Copy(io.Discard, c)
		return
	}

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return
		}
	}

	br := bufio.NewReader(c)
	req, err := http.ReadRequest(br)
	if err != nil || req.Method != http.MethodConnect {
		return
	}
	target := req.Host
	_ = req.Body.Close()

	if p.Refuse {
		_, _ = io.WriteString(c, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
		// Hold on until the client closes so Open reflects its cleanup.
		_, _ = io.Copy(io.Discard, br)
		return
	}

	if p.ForwardTo != "" {
		target = p.ForwardTo
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		_, _ = io.WriteString(c, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
		return
	}
	defer dst.Close()

	_, _ = io.WriteString(c, "HTTP/1.1 200 Connection Established\r\n\r\n")

	go func() {
		_, _ = io.Copy(dst, br)
		_ = dst.Close()
	}()
	_, _ = io.Copy(c, dst)
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	return tcpAddr.IP.String(), tcpAddr.Port
}
