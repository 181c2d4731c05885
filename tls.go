package proxydial

import (
	"context"
	"crypto/tls"
	"net"
)

// TLSWrapper upgrades an established tunnel to a TLS-secured stream bound
// to the original target's identity. host and port are always the
// target's, never the proxy's, so certificate hostname validation works
// even though the socket is physically connected to the proxy.
//
// On success the returned conn owns the raw conn: closing it closes the
// tunnel. On failure the wrapper must leave the raw conn open; the caller
// closes it.
type TLSWrapper interface {
	Wrap(ctx context.Context, conn net.Conn, host string, port int) (net.Conn, error)
}

// TLSClient is the default TLSWrapper, backed by crypto/tls.
type TLSClient struct {
	// Config optionally overrides the TLS configuration. It is cloned per
	// connection; an empty ServerName is filled in with the target host.
	Config *tls.Config
}

func (w *TLSClient) Wrap(ctx context.Context, conn net.Conn, host string, port int) (net.Conn, error) {
	_ = port // the identity is carried by the server name

	cfg := w.Config.Clone()
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}

	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tc, nil
}
