package testutil

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"

	"github.com/txthinking/socks5"
)

// SOCKS5Proxy is an in-process SOCKS5 proxy for tests. It offers only the
// no-authentication method.
type SOCKS5Proxy struct {
	// Refuse rejects every CONNECT with "connection refused".
	Refuse bool

	// ForwardTo, when set, overrides the requested target address.
	ForwardTo string

	ln   net.Listener
	open atomic.Int64
}

// Start begins listening on 127.0.0.1 and serving tunnels.
func (p *SOCKS5Proxy) Start(t *testing.T, ctx context.Context) {
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
func (p *SOCKS5Proxy) Addr() string { return p.ln.Addr().String() }

// HostPort returns the proxy's host and numeric port separately.
func (p *SOCKS5Proxy) HostPort(t *testing.T) (string, int) {
	t.Helper()
	return splitHostPort(t, p.Addr())
}

// Open reports client connections currently held open by the proxy.
func (p *SOCKS5Proxy) Open() int64 { return p.open.Load() }

func (p *SOCKS5Proxy) handle(ctx context.Context, c net.Conn) {
	p.open.Add(1)
	defer p.open.Add(-1)
	defer c.Close()

	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return
	}
	if _, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(c); err != nil {
		return
	}

	req, err := socks5.NewRequestFrom(c)
	if err != nil {
		return
	}
	if req.Cmd != socks5.CmdConnect {
		_, _ = socks5.NewReply(socks5.RepCommandNotSupported, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return
	}

	if p.Refuse {
		_, _ = socks5.NewReply(socks5.RepConnectionRefused, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		// Hold on until the client closes so Open reflects its cleanup.
		_, _ = io.Copy(io.Discard, c)
		return
	}

	target := req.Address()
	if p.ForwardTo != "" {
		target = p.ForwardTo
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		_, _ = socks5.NewReply(socks5.RepHostUnreachable, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return
	}
	defer dst.Close()

	a, addr, port, err := socks5.ParseAddress(dst.LocalAddr().String())
	if err != nil {
		return
	}
	if a == socks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := socks5.NewReply(socks5.RepSuccess, a, addr, port).WriteTo(c); err != nil {
		return
	}

	go func() {
		_, _ = io.Copy(dst, c)
		_ = dst.Close()
	}()
	_, _ = io.Copy(c, dst)
}
