package proxydial

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates malformed construction input, such
	// as a proxy descriptor with missing required fields. It is returned
	// before any I/O is attempted. Match with errors.Is.
	ErrInvalidConfiguration = errors.New("proxydial: invalid configuration")

	// ErrUnsupportedConfiguration indicates a request shape the factory can
	// never satisfy, such as asking for an unconnected socket when a TLS
	// wrapper is configured. The rejection is deterministic, not transient.
	ErrUnsupportedConfiguration = errors.New("proxydial: unsupported configuration")
)

// ConnectError reports a failed connection attempt through the proxy. By
// the time it is returned, any raw tunnel opened during the attempt has
// been closed. Match with errors.As; Unwrap exposes the underlying cause.
type ConnectError struct {
	Op     string // failing step: "dial", "negotiate", or "tls"
	Proxy  string // proxy descriptor in URL form
	Target string // target host:port
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("proxydial: %s %s via %s: %v", e.Op, e.Target, e.Proxy, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
