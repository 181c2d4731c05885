// Command proxydial pipes stdin/stdout through a single TCP connection
// established via an HTTP CONNECT or SOCKS5 proxy, optionally TLS-wrapped.
//
// Usage: proxydial --proxy socks5://127.0.0.1:1080 [flags] host:port
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/proxydial/proxydial"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		proxyURL = pflag.String("proxy", "", "Proxy URL: http://host:port or socks5://host:port (required)")
		timeout  = pflag.Duration("timeout", 10*time.Second, "Timeout for connecting through the proxy (0 = none)")
		local    = pflag.String("local", "", "Local ip:port to bind before connecting. Empty lets the OS choose.")
		useTLS   = pflag.Bool("tls", false, "Wrap the tunnel in TLS to the target")
		insecure = pflag.Bool("tls-insecure", false, "Skip TLS certificate verification (implies --tls)")
		verbose  = pflag.Bool("verbose", false, "Log connection lifecycle")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if pflag.NArg() != 1 {
		return errors.New("usage: proxydial [flags] host:port")
	}
	if *proxyURL == "" {
		return errors.New("--proxy is required")
	}

	proxy, err := proxydial.ParseProxy(*proxyURL)
	if err != nil {
		return fmt.Errorf("invalid --proxy: %w", err)
	}

	target, err := parseTarget(pflag.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}

	if *local != "" {
		target.Local, err = netip.ParseAddrPort(*local)
		if err != nil {
			return fmt.Errorf("invalid --local: %w", err)
		}
	}

	var wrapper proxydial.TLSWrapper
	if *useTLS || *insecure {
		cfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if *insecure {
			cfg.InsecureSkipVerify = true //nolint:gosec // Explicitly requested by the user.
		}
		wrapper = &proxydial.TLSClient{Config: cfg}
	}

	factory, err := proxydial.New(proxy, *timeout, wrapper)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := factory.DialContext(ctx, target)
	if err != nil {
		return err
	}
	if *verbose {
		log.Printf("connected to %s via %s", target.Address(), proxy)
	}

	context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer conn.Close()

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(conn, os.Stdin)
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(os.Stdout, conn)
		return err
	})

	err = g.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if *verbose {
		log.Print("connection closed")
	}
	return err
}

func parseTarget(arg string) (proxydial.Target, error) {
	host, portStr, err := net.SplitHostPort(arg)
	if err != nil {
		return proxydial.Target{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return proxydial.Target{}, fmt.Errorf("invalid port %q", portStr)
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		return proxydial.AddrTarget(ip, port), nil
	}
	return proxydial.HostTarget(host, port), nil
}
