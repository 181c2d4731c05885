package tunnel

import (
	"fmt"
	"net"

	"github.com/txthinking/socks5"
)

// ConnectSOCKS5 negotiates a SOCKS5 CONNECT tunnel to address over conn,
// which must already be connected to the proxy. Only the no-authentication
// method is offered; servers requiring authentication are rejected.
func ConnectSOCKS5(conn net.Conn, address string) error {
	if _, err := socks5.NewNegotiationRequest([]byte{socks5.MethodNone}).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := socks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}
	if neg.Method != socks5.MethodNone {
		return fmt.Errorf("server requires authentication method %d", neg.Method)
	}

	atyp, dstAddr, dstPort, err := socks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	if atyp == socks5.ATYPDomain {
		dstAddr = dstAddr[1:]
	}

	if _, err := socks5.NewRequest(socks5.CmdConnect, atyp, dstAddr, dstPort).WriteTo(conn); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	rep, err := socks5.NewReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != socks5.RepSuccess {
		return fmt.Errorf("connect failed: reply %d", rep.Rep)
	}

	return nil
}
