package proxydial

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Target identifies the server to connect to through the proxy, plus an
// optional local endpoint to bind before connecting. Exactly one of Host
// and IP must be set.
type Target struct {
	// Host is the target in hostname form. It is passed verbatim to the
	// proxy and, when a TLS wrapper is configured, used as the server name
	// for certificate validation.
	Host string

	// IP is the target in pre-resolved form. When a TLS wrapper is
	// configured, the server name is derived by reverse-mapping IP to a
	// name, which may perform a DNS reverse lookup as a side effect of
	// connecting; callers supplying raw addresses should expect this. The
	// literal address is used when no name can be found.
	IP netip.Addr

	// Port is the target TCP port.
	Port int

	// Local optionally binds the connection's local endpoint before
	// connecting. The zero value leaves local address selection to the
	// operating system.
	Local netip.AddrPort
}

// HostTarget returns a Target for a hostname and port.
func HostTarget(host string, port int) Target {
	return Target{Host: host, Port: port}
}

// AddrTarget returns a Target for a pre-resolved address and port.
//
// Note that when a TLS wrapper is configured, connecting to an AddrTarget
// reverse-maps ip to a name for certificate validation, which may be slow
// or surprising; prefer HostTarget when the hostname is known. See
// Target.IP.
func AddrTarget(ip netip.Addr, port int) Target {
	return Target{IP: ip, Port: port}
}

// Address returns the target as host:port, as sent to the proxy.
func (t Target) Address() string {
	host := t.Host
	if host == "" {
		host = t.IP.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(t.Port))
}

func (t Target) validate() error {
	if t.Host == "" && !t.IP.IsValid() {
		return fmt.Errorf("%w: target needs a host or an address", ErrInvalidConfiguration)
	}
	if t.Host != "" && t.IP.IsValid() {
		return fmt.Errorf("%w: target host and address are mutually exclusive", ErrInvalidConfiguration)
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("%w: target port %d out of range", ErrInvalidConfiguration, t.Port)
	}
	return nil
}

// serverName returns the identity to validate TLS certificates against:
// the hostname when one was supplied, otherwise a name reverse-mapped from
// the pre-resolved address, falling back to the literal address when the
// lookup fails or returns nothing.
func (t Target) serverName(ctx context.Context) string {
	if t.Host != "" {
		return t.Host
	}

	names, err := net.DefaultResolver.LookupAddr(ctx, t.IP.String())
	if err == nil && len(names) > 0 {
		return strings.TrimSuffix(names[0], ".")
	}
	return t.IP.String()
}
