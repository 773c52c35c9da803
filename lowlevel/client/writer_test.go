package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/transport"
)

// rawEchoServer accepts connections, serving each on its own goroutine, and
// echoes frames verbatim, byte-for-byte, without interpreting them.
func rawEchoServer(t *testing.T) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 32*1024)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						if _, werr := c.Write(buf[:n]); werr != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr()
}

// silentServer accepts connections and never writes back.
func silentServer(t *testing.T) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				<-time.After(time.Minute)
				c.Close()
			}(conn)
		}
	}()
	return ln.Addr()
}

func newConnectedWriter(t *testing.T, addr net.Addr, maxMessageSize int, opts ...Option) *NetworkWriter {
	t.Helper()
	w, err := NewNetworkWriter(transport.NewSocket(), addr, maxMessageSize, 8, 8, opts...)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Connect(addr); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(w.Dispose)
	return w
}

func TestNewWriterRejectsInvalidConfig(t *testing.T) {
	_, err := NewNetworkWriter(transport.NewSocket(), nil, 0, 8, 8)
	if !errors.Is(err, api.ErrInvalidConfig) {
		t.Fatalf("expected InvalidConfig, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	addr := rawEchoServer(t)
	w := newConnectedWriter(t, addr, 64*1024)

	payload := make([]byte, 8192)
	for i := range payload {
		payload[i] = byte(i)
	}
	res, err := w.Write(addr, payload)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if res.BytesTransferred != len(payload) {
		t.Fatalf("wrote %d, want %d", res.BytesTransferred, len(payload))
	}

	dst := make([]byte, len(payload))
	res, err = w.Read(addr, dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.BytesTransferred != len(payload) {
		t.Fatalf("read %d, want %d", res.BytesTransferred, len(payload))
	}
	for i := range dst {
		if dst[i] != payload[i] {
			t.Fatalf("byte %d corrupted", i)
		}
	}
}

func TestWriteAsyncResolvesSink(t *testing.T) {
	addr := rawEchoServer(t)
	w := newConnectedWriter(t, addr, 1024)

	sink := w.WriteAsync(context.Background(), addr, []byte("hello"))
	select {
	case <-sink.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("write never completed")
	}
	n, err := sink.Wait()
	if err != nil || n != 5 {
		t.Fatalf("got (%d, %v), want (5, nil)", n, err)
	}
}

func TestWriteRejectsOversizedPayload(t *testing.T) {
	addr := rawEchoServer(t)
	w := newConnectedWriter(t, addr, 16)

	_, err := w.Write(addr, make([]byte, 17))
	if !errors.Is(err, api.ErrBufferTooLarge) {
		t.Fatalf("expected BufferTooLarge, got %v", err)
	}
}

func TestWriteWhileDisconnectedFails(t *testing.T) {
	w, err := NewNetworkWriter(transport.NewSocket(), nil, 1024, 4, 4)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Dispose()
	if _, err := w.Write(nil, []byte("x")); err == nil {
		t.Fatal("expected write on a disconnected socket to fail")
	}
}

func TestReadAsyncCancelled(t *testing.T) {
	addr := silentServer(t)
	w := newConnectedWriter(t, addr, 1024)

	ctx, cancel := context.WithCancel(context.Background())
	sink := w.ReadAsync(ctx, addr, make([]byte, 64))
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-sink.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation never resolved the sink")
	}
	if _, err := sink.Wait(); !errors.Is(err, api.ErrCancelled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}
}

func TestDisconnectWithReuseAllowsReconnect(t *testing.T) {
	addr := rawEchoServer(t)
	w := newConnectedWriter(t, addr, 1024)

	if err := w.Disconnect(true); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := w.Connect(addr); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if _, err := w.Write(addr, []byte("again")); err != nil {
		t.Fatalf("write after reconnect: %v", err)
	}
}

func TestDisposeRejectsFurtherOperations(t *testing.T) {
	addr := rawEchoServer(t)
	w := newConnectedWriter(t, addr, 1024)

	w.Dispose()
	sink := w.WriteAsync(context.Background(), addr, []byte("late"))
	if _, err := sink.Wait(); !errors.Is(err, api.ErrShutdown) {
		t.Fatalf("expected Shutdown, got %v", err)
	}
}

func TestPeerCloseSurfacesAsPeerClosed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	w := newConnectedWriter(t, ln.Addr(), 1024)
	_, rerr := w.Read(ln.Addr(), make([]byte, 16))
	if !errors.Is(rerr, api.ErrPeerClosed) {
		t.Fatalf("expected PeerClosed, got %v", rerr)
	}
}
