package proxydial

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Kind identifies the protocol spoken to the proxy server itself.
type Kind int

const (
	// HTTPTunnel proxies tunnel traffic via the HTTP CONNECT method.
	HTTPTunnel Kind = iota + 1
	// SOCKS5 proxies tunnel traffic via the SOCKS version 5 CONNECT command.
	SOCKS5
)

func (k Kind) String() string {
	switch k {
	case HTTPTunnel:
		return "http"
	case SOCKS5:
		return "socks5"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Proxy describes a proxy server: its address and the protocol it speaks.
// The zero value is not a valid descriptor.
type Proxy struct {
	Kind Kind
	Host string
	Port int
}

// NewProxy builds a descriptor for the proxy at host:port speaking kind.
func NewProxy(host string, port int, kind Kind) (Proxy, error) {
	p := Proxy{Kind: kind, Host: host, Port: port}
	if err := p.validate(); err != nil {
		return Proxy{}, err
	}
	return p, nil
}

// ParseProxy parses a proxy URL of the form http://host:port or
// socks5://host:port. A missing port defaults to 80 or 1080 by scheme.
//
// URLs carrying userinfo are rejected: proxy authentication is not
// supported.
func ParseProxy(rawURL string) (Proxy, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Proxy{}, fmt.Errorf("%w: invalid proxy url: %v", ErrInvalidConfiguration, err)
	}

	if u.Path != "" && u.Path != "/" {
		return Proxy{}, fmt.Errorf("%w: proxy url path should be empty", ErrInvalidConfiguration)
	}
	if u.User != nil {
		return Proxy{}, fmt.Errorf("%w: proxy authentication is not supported", ErrInvalidConfiguration)
	}

	var kind Kind
	switch strings.ToLower(u.Scheme) {
	case "http":
		kind = HTTPTunnel
	case "socks5":
		kind = SOCKS5
	case "":
		return Proxy{}, fmt.Errorf("%w: proxy url missing scheme", ErrInvalidConfiguration)
	default:
		return Proxy{}, fmt.Errorf("%w: unsupported proxy scheme %q", ErrInvalidConfiguration, u.Scheme)
	}

	port := defaultPortForKind(kind)
	if s := u.Port(); s != "" {
		port, err = strconv.Atoi(s)
		if err != nil {
			return Proxy{}, fmt.Errorf("%w: invalid proxy port %q", ErrInvalidConfiguration, s)
		}
	}

	return NewProxy(u.Hostname(), port, kind)
}

func defaultPortForKind(kind Kind) int {
	if kind == SOCKS5 {
		return 1080
	}
	return 80
}

// Address returns the proxy's host:port.
func (p Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// String renders the descriptor in URL form, e.g. "socks5://host:1080".
func (p Proxy) String() string {
	return p.Kind.String() + "://" + p.Address()
}

func (p Proxy) validate() error {
	if p.Kind != HTTPTunnel && p.Kind != SOCKS5 {
		return fmt.Errorf("%w: unknown proxy kind", ErrInvalidConfiguration)
	}
	if p.Host == "" {
		return fmt.Errorf("%w: missing proxy host", ErrInvalidConfiguration)
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("%w: proxy port %d out of range", ErrInvalidConfiguration, p.Port)
	}
	return nil
}
