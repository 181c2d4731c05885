// Package proxydial establishes TCP connections through an HTTP CONNECT or
// SOCKS5 proxy, optionally layering TLS on top of the tunnel.
//
// A Factory holds a proxy descriptor, a connect timeout, and an optional
// TLS wrapper. Each dial is independent: there is no pooling, retrying, or
// shared state, and a Factory is safe for concurrent use. Communication
// with the proxy itself is neither encrypted nor authenticated; TLS, when
// configured, runs end to end through the tunnel and validates the
// certificate against the original target's identity, not the proxy's.
package proxydial

import (
	"context"
	"net"
	"time"

	"github.com/proxydial/proxydial/internal/tunnel"
)

// Factory dials connections through a configured proxy. It is immutable
// after construction.
type Factory struct {
	proxy   Proxy
	timeout time.Duration
	tlsWrap TLSWrapper
}

// New returns a Factory dialing through proxy. timeout bounds the TCP dial
// to the proxy plus tunnel negotiation for each attempt; values <= 0 mean
// no timeout. wrapper, when non-nil, secures every connection with TLS
// after the tunnel is established.
//
// Construction performs no I/O; it fails only on a malformed descriptor.
func New(proxy Proxy, timeout time.Duration, wrapper TLSWrapper) (*Factory, error) {
	if err := proxy.validate(); err != nil {
		return nil, err
	}
	if timeout < 0 {
		timeout = 0
	}
	return &Factory{proxy: proxy, timeout: timeout, tlsWrap: wrapper}, nil
}

// NewFromAddr is like New but builds the proxy descriptor from its parts.
func NewFromAddr(proxyHost string, proxyPort int, kind Kind, timeout time.Duration, wrapper TLSWrapper) (*Factory, error) {
	p, err := NewProxy(proxyHost, proxyPort, kind)
	if err != nil {
		return nil, err
	}
	return New(p, timeout, wrapper)
}

// Proxy returns the configured proxy descriptor.
func (f *Factory) Proxy() Proxy { return f.proxy }

// Timeout returns the configured connect timeout (0 = none).
func (f *Factory) Timeout() time.Duration { return f.timeout }

// Dial connects to target through the proxy. See DialContext.
func (f *Factory) Dial(target Target) (net.Conn, error) {
	return f.DialContext(context.Background(), target)
}

// DialContext connects to target through the proxy, negotiates the tunnel,
// and, if a TLS wrapper is configured, secures the stream against the
// original target identity (reverse-mapping pre-resolved addresses to a
// name; see Target.IP).
//
// The configured timeout bounds dialing the proxy and negotiating the
// tunnel; ctx may additionally cancel the attempt. On any failure the raw
// tunnel is closed before the error is returned as a *ConnectError
// wrapping the cause; nothing half-open ever reaches the caller.
func (f *Factory) DialContext(ctx context.Context, target Target) (net.Conn, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}

	conn, err := f.dialRaw(ctx, target)
	if err != nil {
		return nil, err
	}

	return f.secure(ctx, conn, target)
}

// dialRaw establishes the unencrypted tunnel: TCP to the proxy (binding
// target.Local first when set), then tunnel negotiation for the target.
// The configured timeout budgets both steps together.
func (f *Factory) dialRaw(ctx context.Context, target Target) (_ net.Conn, retErr error) {
	var deadline time.Time
	if f.timeout > 0 {
		deadline = time.Now().Add(f.timeout)
	}

	d := net.Dialer{Deadline: deadline}
	if target.Local.IsValid() {
		d.LocalAddr = net.TCPAddrFromAddrPort(target.Local)
	}

	conn, err := d.DialContext(ctx, "tcp", f.proxy.Address())
	if err != nil {
		return nil, f.connectError("dial", target, err)
	}
	defer func() {
		if retErr != nil {
			_ = conn.Close() // best effort; never masks the primary error
		}
	}()

	if !deadline.IsZero() {
		_ = conn.SetDeadline(deadline)
	}

	switch f.proxy.Kind {
	case SOCKS5:
		err = tunnel.ConnectSOCKS5(conn, target.Address())
	default:
		err = tunnel.ConnectHTTP(conn, target.Address())
	}
	if err != nil {
		return nil, f.connectError("negotiate", target, err)
	}

	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

// secure applies the configured TLS wrapper, handing it the original
// target identity. On wrapping failure the raw conn is closed (best
// effort) and the wrapping error is surfaced.
func (f *Factory) secure(ctx context.Context, conn net.Conn, target Target) (net.Conn, error) {
	if f.tlsWrap == nil {
		return conn, nil
	}

	host := target.serverName(ctx)

	tlsConn, err := f.tlsWrap.Wrap(ctx, conn, host, target.Port)
	if err != nil {
		_ = conn.Close() // best effort; never masks the wrapping error
		return nil, f.connectError("tls", target, err)
	}
	return tlsConn, nil
}

func (f *Factory) connectError(op string, target Target, err error) *ConnectError {
	return &ConnectError{Op: op, Proxy: f.proxy.String(), Target: target.Address(), Err: err}
}
