package proxydial

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// Socket is a raw proxy-bound socket that has not yet been connected to
// any target. It exists for callers that need to bind a local endpoint or
// hold an unconnected socket before dialing; most callers should use
// Factory.Dial directly.
type Socket struct {
	f     *Factory
	local netip.AddrPort
	conn  net.Conn
}

// Socket returns an unconnected socket bound to the configured proxy.
//
// It fails with ErrUnsupportedConfiguration when a TLS wrapper is
// configured: an unconnected socket cannot be pre-wrapped for TLS, which
// needs an established connection and a known target identity.
func (f *Factory) Socket() (*Socket, error) {
	if f.tlsWrap != nil {
		return nil, fmt.Errorf("%w: cannot create an unconnected socket when a TLS wrapper is configured", ErrUnsupportedConfiguration)
	}
	return &Socket{f: f}, nil
}

// Bind sets the local endpoint to bind before connecting.
func (s *Socket) Bind(local netip.AddrPort) error {
	if s.conn != nil {
		return fmt.Errorf("%w: socket already connected", ErrUnsupportedConfiguration)
	}
	s.local = local
	return nil
}

// Connected reports whether Connect has succeeded.
func (s *Socket) Connected() bool { return s.conn != nil }

// Connect establishes the raw tunnel to target through the proxy and
// returns it. A local endpoint set with Bind takes effect unless the
// target itself carries one.
func (s *Socket) Connect(ctx context.Context, target Target) (net.Conn, error) {
	if s.conn != nil {
		return nil, fmt.Errorf("%w: socket already connected", ErrUnsupportedConfiguration)
	}
	if err := target.validate(); err != nil {
		return nil, err
	}
	if !target.Local.IsValid() {
		target.Local = s.local
	}

	conn, err := s.f.dialRaw(ctx, target)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}
