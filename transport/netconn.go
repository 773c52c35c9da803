// File: transport/netconn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thin ownership wrappers over OS stream sockets. The component that opens
// or accepts a socket through these wrappers exclusively owns closing it.

package transport

import (
	"context"
	"net"
	"sync"
	"time"
)

// Socket is a client-side stream socket that may not be connected yet.
// Bind fixes the local endpoint before the first connect; Connect dials
// the peer; Close releases whatever the socket currently holds. All methods
// are safe for concurrent use, but only one Connect may be in flight at a
// time.
type Socket struct {
	mu    sync.Mutex
	laddr *net.TCPAddr
	conn  net.Conn
}

// NewSocket returns an unbound, unconnected stream socket.
func NewSocket() *Socket {
	return &Socket{}
}

// NewConnectedSocket wraps an already-established connection, taking
// ownership of it.
func NewConnectedSocket(conn net.Conn) *Socket {
	return &Socket{conn: conn}
}

// Bind fixes the local endpoint used by subsequent Connect calls.
func (s *Socket) Bind(local *net.TCPAddr) {
	s.mu.Lock()
	s.laddr = local
	s.mu.Unlock()
}

// Connect dials endpoint over TCP, honouring ctx for cancellation. Nagle's
// algorithm is disabled on the established connection: the engine's frames
// are written whole and latency matters more than coalescing.
func (s *Socket) Connect(ctx context.Context, endpoint net.Addr) error {
	s.mu.Lock()
	laddr := s.laddr
	s.mu.Unlock()

	d := net.Dialer{LocalAddr: laddr}
	conn, err := d.DialContext(ctx, "tcp", endpoint.String())
	if err != nil {
		return err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Connected reports whether the socket currently holds an established
// connection.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Conn returns the underlying connection, or nil when disconnected.
func (s *Socket) Conn() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// RemoteAddr returns the connected peer endpoint, or nil.
func (s *Socket) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// SetDeadline applies t to both directions of the current connection.
func (s *Socket) SetDeadline(t time.Time) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.SetDeadline(t)
}

// Disconnect closes the current connection. When reuse is true the Socket
// itself stays usable for a later Connect with the same bound local
// endpoint; otherwise the bound local endpoint is cleared as well. A later
// Connect is permitted in both cases and dials a fresh OS socket.
func (s *Socket) Disconnect(reuse bool) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	if !reuse {
		s.laddr = nil
	}
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Close releases the socket unconditionally.
func (s *Socket) Close() error {
	return s.Disconnect(false)
}
