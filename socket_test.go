package proxydial

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/proxydial/proxydial/internal/testutil"
)

func TestSocketRejectedWhenTLSConfigured(t *testing.T) {
	t.Parallel()

	f, err := NewFromAddr("proxy.example", 3128, HTTPTunnel, time.Second, &TLSClient{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.Socket(); !errors.Is(err, ErrUnsupportedConfiguration) {
		t.Fatalf("err=%v, want ErrUnsupportedConfiguration", err)
	}
}

func TestSocketLifecycle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)

	p := &testutil.ConnectProxy{}
	p.Start(t, ctx)
	host, port := p.HostPort(t)

	f, err := NewFromAddr(host, port, HTTPTunnel, 2*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}

	s, err := f.Socket()
	if err != nil {
		t.Fatal(err)
	}
	if s.Connected() {
		t.Fatal("new socket reports connected")
	}

	// Reserve a local port by listening on it briefly.
	rln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	reserved := rln.Addr().(*net.TCPAddr).Port
	_ = rln.Close()

	local := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(reserved))
	if err := s.Bind(local); err != nil {
		t.Fatal(err)
	}

	conn, err := s.Connect(ctx, addrTargetFor(t, echoLn.Addr().String()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if !s.Connected() {
		t.Fatal("socket does not report connected")
	}
	if got := conn.LocalAddr().(*net.TCPAddr).Port; got != reserved {
		t.Fatalf("local port %d, want bound port %d", got, reserved)
	}

	testutil.AssertEcho(t, conn, conn, []byte("socket hello"))

	if err := s.Bind(local); !errors.Is(err, ErrUnsupportedConfiguration) {
		t.Fatalf("bind after connect: err=%v, want ErrUnsupportedConfiguration", err)
	}
	if _, err := s.Connect(ctx, addrTargetFor(t, echoLn.Addr().String())); !errors.Is(err, ErrUnsupportedConfiguration) {
		t.Fatalf("second connect: err=%v, want ErrUnsupportedConfiguration", err)
	}
}
