package tunnel

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/txthinking/socks5"
)

func TestConnectHTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{name: "established", status: "HTTP/1.1 200 Connection Established\r\n\r\n"},
		{name: "refused", status: "HTTP/1.1 502 Bad Gateway\r\n\r\n", wantErr: true},
		{name: "forbidden", status: "HTTP/1.1 403 Forbidden\r\n\r\n", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			done := make(chan error, 1)
			go func() {
				br := bufio.NewReader(server)
				req, err := http.ReadRequest(br)
				if err != nil {
					done <- err
					return
				}
				if req.Method != http.MethodConnect || req.Host != "example.com:443" {
					done <- fmt.Errorf("unexpected request %s %s", req.Method, req.Host)
					return
				}
				_, err = io.WriteString(server, tt.status)
				done <- err
			}()

			err := ConnectHTTP(client, "example.com:443")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if err := <-done; err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestConnectSOCKS5(t *testing.T) {
	t.Parallel()

	zeroIP := []byte{0x00, 0x00, 0x00, 0x00}
	zeroPort := []byte{0x00, 0x00}

	tests := []struct {
		name    string
		rep     byte
		wantErr bool
	}{
		{name: "success", rep: socks5.RepSuccess},
		{name: "refused", rep: socks5.RepConnectionRefused, wantErr: true},
		{name: "host unreachable", rep: socks5.RepHostUnreachable, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			done := make(chan error, 1)
			go func() {
				done <- serveSOCKS5Connect(server, "example.com:443", tt.rep, zeroIP, zeroPort)
			}()

			err := ConnectSOCKS5(client, "example.com:443")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if err := <-done; err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestConnectSOCKS5AuthRequired(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		if _, err := socks5.NewNegotiationRequestFrom(server); err != nil {
			done <- err
			return
		}
		_, err := socks5.NewNegotiationReply(socks5.MethodUsernamePassword).WriteTo(server)
		done <- err
	}()

	if err := ConnectSOCKS5(client, "example.com:443"); err == nil {
		t.Fatal("expected error for auth-requiring server")
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func serveSOCKS5Connect(server net.Conn, wantAddr string, rep byte, replyIP, replyPort []byte) error {
	if _, err := socks5.NewNegotiationRequestFrom(server); err != nil {
		return err
	}
	if _, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(server); err != nil {
		return err
	}

	req, err := socks5.NewRequestFrom(server)
	if err != nil {
		return err
	}
	if req.Cmd != socks5.CmdConnect {
		return fmt.Errorf("unexpected command %d", req.Cmd)
	}
	if got := req.Address(); got != wantAddr {
		return fmt.Errorf("requested %q, want %q", got, wantAddr)
	}

	_, err = socks5.NewReply(rep, socks5.ATYPIPv4, replyIP, replyPort).WriteTo(server)
	return err
}
