package tunnel

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ConnectHTTP negotiates an HTTP CONNECT tunnel to address over conn,
// which must already be connected to the proxy.
func ConnectHTTP(conn net.Conn, address string) error {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}

	if err := req.Write(conn); err != nil {
		return fmt.Errorf("connect write: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return fmt.Errorf("connect read: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("connect failed: %s", resp.Status)
	}

	return nil
}
