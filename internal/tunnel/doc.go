// Package tunnel negotiates proxy tunnels over already-connected streams.
//
// Both negotiators assume the caller has dialed the proxy, applied any
// deadline, and retains ownership of the conn on failure.
package tunnel
