// File: lowlevel/client/writer.go
// Package client implements the client side of the framed stream engine:
// a NetworkWriter that connects, disconnects, and exchanges length-prefixed
// frames with a stream reader, in both blocking and completion-sink form.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/concurrency"
	"github.com/momentics/hioload-tcp/pool"
	"github.com/momentics/hioload-tcp/protocol"
	"github.com/momentics/hioload-tcp/transport"
)

// NetworkWriter is the client-side endpoint. It owns the socket it is
// constructed with, frames every payload with a length header, and
// tolerates OS-level short reads and writes by continuing each transfer
// until the frame boundary is reached.
//
// At most one send and one receive may be in flight at a time; concurrent
// calls in the same direction are serialized, which is also what preserves
// frame order on the stream.
type NetworkWriter struct {
	cfg             *Config
	sock            *transport.Socket
	defaultEndpoint net.Addr
	maxMessageSize  int

	bufPool   *pool.BufferPool
	statePool *pool.StateObjectPool[*api.OperationState]
	exec      *concurrency.Executor
	ctrl      *control.Adapter
	shutdown  api.Shutdown

	sendMu sync.Mutex
	recvMu sync.Mutex
	connMu sync.Mutex

	bytesSent atomic.Int64
	bytesRecv atomic.Int64

	disposeOnce sync.Once
}

// NewNetworkWriter constructs a writer around sock, which it takes
// exclusive ownership of. defaultEndpoint seeds the endpoint field of
// pooled state objects before their first use. maxMessageSize bounds the
// payload of a single frame and must be positive.
func NewNetworkWriter(sock *transport.Socket, defaultEndpoint net.Addr, maxMessageSize, pooledBuffersPerBucket, preallocatedStateObjects int, opts ...Option) (*NetworkWriter, error) {
	if maxMessageSize <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidConfig, "max message size must be positive")
	}
	if sock == nil {
		sock = transport.NewSocket()
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	w := &NetworkWriter{
		cfg:             cfg,
		sock:            sock,
		defaultEndpoint: defaultEndpoint,
		maxMessageSize:  maxMessageSize,
		bufPool:         pool.NewBufferPool(protocol.HeaderSize+maxMessageSize, pooledBuffersPerBucket),
		exec:            concurrency.NewExecutor(cfg.ExecutorWorkers, cfg.WorkerAffinity),
		ctrl:            control.NewAdapter(),
	}
	w.statePool = pool.NewStateObjectPool(preallocatedStateObjects,
		func() *api.OperationState { return &api.OperationState{Remote: defaultEndpoint} },
		func(s *api.OperationState) {
			api.ResetOperationState(s)
			s.Remote = defaultEndpoint
		},
		func(s *api.OperationState) bool { return s != nil },
		func(s *api.OperationState) { s.Buf = nil },
	)
	w.ctrl.RegisterDebugProbe("writer.connected", func() any { return w.sock.Connected() })
	w.ctrl.SetMetric("writer.bytes_sent", int64(0))
	w.ctrl.SetMetric("writer.bytes_received", int64(0))
	return w, nil
}

// Bind fixes the local endpoint used by subsequent connects.
func (w *NetworkWriter) Bind(local *net.TCPAddr) {
	w.sock.Bind(local)
}

// Control exposes the writer's metrics and debug-probe surface.
func (w *NetworkWriter) Control() *control.Adapter {
	return w.ctrl
}

// Connect establishes a TCP connection to endpoint, blocking until it is
// up or failed.
func (w *NetworkWriter) Connect(endpoint net.Addr) error {
	_, err := w.ConnectAsync(context.Background(), endpoint).Wait()
	return err
}

// ConnectAsync initiates the connect and returns a sink resolved on
// completion. ctx cancels the attempt best-effort.
func (w *NetworkWriter) ConnectAsync(ctx context.Context, endpoint net.Addr) *api.CompletionSink {
	sink := api.NewCompletionSink()
	if w.shutdown.Triggered() {
		sink.Fail(api.NewError(api.ErrCodeShutdown, "writer is shutting down"))
		return sink
	}
	w.dispatch(func() {
		w.connMu.Lock()
		defer w.connMu.Unlock()
		st := w.statePool.Rent()
		st.Remote = endpoint
		st.Token = api.Token{Kind: api.OpConnect, Sink: sink}
		err := w.sock.Connect(ctx, endpoint)
		w.statePool.Return(st)
		if err != nil {
			w.cfg.Logger.Warn("connect failed", "endpoint", endpoint, "err", err)
			if ctx.Err() != nil {
				sink.Fail(api.WrapError(api.ErrCodeCancelled, "connect cancelled", err))
				return
			}
			sink.Fail(api.MapOSError(err))
			return
		}
		w.cfg.Logger.Debug("connected", "endpoint", endpoint)
		sink.Resolve(0)
	})
	return sink
}

// Disconnect performs a graceful close of the current connection. When
// reuseSocket is true the writer stays bound and can connect again.
func (w *NetworkWriter) Disconnect(reuseSocket bool) error {
	_, err := w.DisconnectAsync(context.Background(), reuseSocket).Wait()
	return err
}

// DisconnectAsync initiates the disconnect and returns its completion sink.
func (w *NetworkWriter) DisconnectAsync(ctx context.Context, reuseSocket bool) *api.CompletionSink {
	sink := api.NewCompletionSink()
	w.dispatch(func() {
		w.connMu.Lock()
		defer w.connMu.Unlock()
		st := w.statePool.Rent()
		st.Token = api.Token{Kind: api.OpDisconnect, Sink: sink}
		err := w.sock.Disconnect(reuseSocket)
		w.statePool.Return(st)
		if err != nil {
			sink.Fail(api.MapOSError(err))
			return
		}
		sink.Resolve(0)
	})
	return sink
}

// Write sends exactly len(src) bytes to the connected peer as one frame,
// blocking until the whole frame is on the wire.
func (w *NetworkWriter) Write(endpoint net.Addr, src []byte) (api.TransmissionResult, error) {
	n, err := w.WriteAsync(context.Background(), endpoint, src).Wait()
	return api.TransmissionResult{BytesTransferred: n, Peer: w.peerOr(endpoint), Buffer: src}, err
}

// WriteAsync stages src into a pooled transmission buffer, frames it, and
// sends it across as many OS write calls as the kernel requires. The
// returned sink resolves with len(src) once the final byte is accepted.
func (w *NetworkWriter) WriteAsync(ctx context.Context, endpoint net.Addr, src []byte) *api.CompletionSink {
	sink := api.NewCompletionSink()
	if w.shutdown.Triggered() {
		sink.Fail(api.NewError(api.ErrCodeShutdown, "writer is shutting down"))
		return sink
	}
	if len(src) > w.maxMessageSize {
		sink.Fail(api.NewError(api.ErrCodeBufferTooLarge, "payload exceeds max message size"))
		return sink
	}

	frameLen := protocol.HeaderSize + len(src)
	buf, err := w.bufPool.Rent(frameLen)
	if err != nil {
		sink.Fail(err)
		return sink
	}
	protocol.Encode(uint32(len(src)), buf[:protocol.HeaderSize])
	copy(buf[protocol.HeaderSize:frameLen], src)

	w.dispatch(func() {
		w.sendMu.Lock()
		conn := w.sock.Conn()
		if conn == nil {
			w.bufPool.Return(buf, false)
			w.sendMu.Unlock()
			sink.Fail(api.NewError(api.ErrCodeTransport, "socket is not connected"))
			return
		}
		st := w.statePool.Rent()
		st.Buf = buf
		st.Remote = w.peerOr(endpoint)
		st.Token = api.Token{Kind: api.OpSend, Sink: sink}

		stopWatch := w.watchCancellation(ctx)
		finish := func() {
			stopWatch()
			w.bufPool.Return(buf, false)
			w.statePool.Return(st)
			w.sendMu.Unlock()
		}

		inline := 0
		var step func()
		step = func() {
			for {
				if w.shutdown.Triggered() {
					finish()
					sink.Fail(api.NewError(api.ErrCodeShutdown, "writer is shutting down"))
					return
				}
				if st.Token.Transferred == frameLen {
					w.ctrl.SetMetric("writer.bytes_sent", w.bytesSent.Add(int64(frameLen)))
					finish()
					sink.Resolve(len(src))
					return
				}
				if inline++; inline > w.cfg.InlineContinuationCap {
					inline = 0
					if w.exec.Submit(step) == nil {
						return
					}
				}
				n, err := conn.Write(st.Buf[st.Token.Transferred:frameLen])
				if n > 0 {
					st.Token.Transferred += n
				}
				if err != nil {
					finish()
					sink.Fail(w.mapOpError(ctx, err))
					return
				}
				if n == 0 {
					finish()
					sink.Fail(api.NewError(api.ErrCodePeerClosed, "peer closed connection"))
					return
				}
			}
		}
		step()
	})
	return sink
}

// Read receives one frame and copies its payload into dst, blocking until
// the full frame has arrived.
func (w *NetworkWriter) Read(endpoint net.Addr, dst []byte) (api.TransmissionResult, error) {
	n, err := w.ReadAsync(context.Background(), endpoint, dst).Wait()
	return api.TransmissionResult{BytesTransferred: n, Peer: w.peerOr(endpoint), Buffer: dst[:n]}, err
}

// ReadAsync receives the next frame off the stream into a pooled buffer,
// then copies the payload into dst. The sink resolves with the payload
// length. A frame whose declared payload exceeds len(dst) or the writer's
// max message size fails the sink without consuming the payload bytes.
func (w *NetworkWriter) ReadAsync(ctx context.Context, endpoint net.Addr, dst []byte) *api.CompletionSink {
	sink := api.NewCompletionSink()
	if w.shutdown.Triggered() {
		sink.Fail(api.NewError(api.ErrCodeShutdown, "writer is shutting down"))
		return sink
	}
	if len(dst) > w.maxMessageSize {
		sink.Fail(api.NewError(api.ErrCodeBufferTooLarge, "destination exceeds max message size"))
		return sink
	}

	buf, err := w.bufPool.Rent(protocol.HeaderSize + len(dst))
	if err != nil {
		sink.Fail(err)
		return sink
	}

	w.dispatch(func() {
		w.recvMu.Lock()
		conn := w.sock.Conn()
		if conn == nil {
			w.bufPool.Return(buf, false)
			w.recvMu.Unlock()
			sink.Fail(api.NewError(api.ErrCodeTransport, "socket is not connected"))
			return
		}
		st := w.statePool.Rent()
		st.Buf = buf
		st.Remote = w.peerOr(endpoint)
		st.Token = api.Token{Kind: api.OpReceive, Sink: sink, Dst: dst}

		stopWatch := w.watchCancellation(ctx)
		finish := func() {
			stopWatch()
			w.bufPool.Return(buf, false)
			w.statePool.Return(st)
			w.recvMu.Unlock()
		}

		target := protocol.HeaderSize
		decoded := false
		inline := 0
		var step func()
		step = func() {
			for {
				if w.shutdown.Triggered() {
					finish()
					sink.Fail(api.NewError(api.ErrCodeShutdown, "writer is shutting down"))
					return
				}
				if st.Token.Transferred == target {
					if !decoded {
						length, derr := protocol.Decode(st.Buf[:protocol.HeaderSize], uint32(w.maxMessageSize))
						if derr != nil {
							finish()
							sink.Fail(derr)
							return
						}
						if int(length) > len(dst) {
							finish()
							sink.Fail(api.NewError(api.ErrCodeBufferTooLarge, "frame payload exceeds destination buffer"))
							return
						}
						decoded = true
						target = protocol.HeaderSize + int(length)
						continue
					}
					payload := st.Buf[protocol.HeaderSize:target]
					n := copy(st.Token.Dst, payload)
					w.ctrl.SetMetric("writer.bytes_received", w.bytesRecv.Add(int64(target)))
					finish()
					sink.Resolve(n)
					return
				}
				if inline++; inline > w.cfg.InlineContinuationCap {
					inline = 0
					if w.exec.Submit(step) == nil {
						return
					}
				}
				n, err := conn.Read(st.Buf[st.Token.Transferred:target])
				if n > 0 {
					st.Token.Transferred += n
				}
				if err != nil {
					finish()
					sink.Fail(w.mapOpError(ctx, err))
					return
				}
				if n == 0 {
					finish()
					sink.Fail(api.NewError(api.ErrCodePeerClosed, "peer closed connection"))
					return
				}
			}
		}
		step()
	})
	return sink
}

// Shutdown half-closes the connected socket in the given direction.
func (w *NetworkWriter) Shutdown(how api.ShutdownHow) error {
	conn := w.sock.Conn()
	if conn == nil {
		return api.NewError(api.ErrCodeTransport, "socket is not connected")
	}
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return w.sock.Disconnect(true)
	}
	switch how {
	case api.ShutdownRecv:
		return tc.CloseRead()
	case api.ShutdownSend:
		return tc.CloseWrite()
	default:
		if err := tc.CloseRead(); err != nil {
			return err
		}
		return tc.CloseWrite()
	}
}

// Dispose tears the writer down: the shutdown signal trips, the socket
// closes (failing any in-flight operation), the worker pool drains any
// continuation still queued on it (each one observes the tripped signal
// and fails its completion sink, so no waiter is left hanging), and the
// pools are released. Safe to call more than once.
func (w *NetworkWriter) Dispose() {
	w.disposeOnce.Do(func() {
		w.shutdown.Trigger()
		w.sock.Close()
		w.exec.Close()
		w.statePool.Dispose()
		w.cfg.Logger.Debug("writer disposed")
	})
}

// dispatch hands task to the completion worker pool, falling back to a
// fresh goroutine when the pool rejects it (run queue full or pool closed).
func (w *NetworkWriter) dispatch(task func()) {
	if err := w.exec.Submit(task); err != nil {
		go task()
	}
}

// watchCancellation forces any blocking socket call to return once ctx or
// the shutdown signal fires, by slamming the deadline to the past. The
// returned stop func ends the watch and clears the deadline; it joins the
// watcher goroutine first so the clear is always the last deadline write
// and a cancelled operation cannot leave a stale past deadline behind for
// the next one.
func (w *NetworkWriter) watchCancellation(ctx context.Context) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
			w.sock.SetDeadline(time.Unix(1, 0))
		case <-w.shutdown.Done():
			w.sock.SetDeadline(time.Unix(1, 0))
		case <-stop:
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			w.sock.SetDeadline(time.Time{})
		})
	}
}

// mapOpError resolves the precedence between a cancellation the caller
// asked for and the raw socket error the cancellation provoked.
func (w *NetworkWriter) mapOpError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return api.WrapError(api.ErrCodeCancelled, "operation cancelled", err)
	}
	if w.shutdown.Triggered() {
		return api.WrapError(api.ErrCodeShutdown, "writer is shutting down", err)
	}
	return api.MapOSError(err)
}

func (w *NetworkWriter) peerOr(endpoint net.Addr) net.Addr {
	if addr := w.sock.RemoteAddr(); addr != nil {
		return addr
	}
	if endpoint != nil {
		return endpoint
	}
	return w.defaultEndpoint
}
