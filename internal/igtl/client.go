package igtl

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultPort is the usual OpenIGTLink server port.
const DefaultPort = 18944

// Dial connects to an OpenIGTLink server and returns a mux over the
// connection.
func Dial(ctx context.Context, addr string) (*Mux[net.Conn], error) {
	var d net.Dialer
	d.Timeout = 10 * time.Second
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tracker bridge at %s: %w", addr, err)
	}
	return NewMux[net.Conn](conn), nil
}
