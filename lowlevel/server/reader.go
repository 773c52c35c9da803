// File: lowlevel/server/reader.go
// Package server implements the server side of the framed stream engine:
// a NetworkReader that keeps a configurable number of accept operations
// outstanding, runs the per-connection receive/dispatch/send loop, and
// quiesces cleanly on stop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/concurrency"
	"github.com/momentics/hioload-tcp/pool"
	"github.com/momentics/hioload-tcp/protocol"
	"github.com/momentics/hioload-tcp/transport"
)

// ErrAlreadyRunning is returned by Start when the reader is already
// accepting.
var ErrAlreadyRunning = errors.New("reader already running")

// errHandlerPanic marks a connection whose handler panicked; the
// connection is closed, the reader keeps serving.
var errHandlerPanic = errors.New("request handler panicked")

// NetworkReader is the server-side endpoint. It owns the listening socket
// and every connection accepted from it; a connection failure never
// escapes its own serve loop.
type NetworkReader struct {
	cfg              *Config
	handler          api.RequestHandler
	sock             *transport.ListenSocket
	defaultEndpoint  net.Addr
	packetBufferSize int

	bufPool   *pool.BufferPool
	statePool *pool.StateObjectPool[*api.OperationState]
	exec      *concurrency.Executor
	ctrl      *control.Adapter
	shutdown  api.Shutdown

	accepts errgroup.Group
	connWG  sync.WaitGroup
	conns   sync.Map

	started  atomic.Bool
	stopOnce sync.Once

	accepted    atomic.Int64
	active      atomic.Int64
	closedConns atomic.Int64
	bytesIn     atomic.Int64
	bytesOut    atomic.Int64
	maxConns    atomic.Int64
}

// NewNetworkReader constructs a reader around sock, which it takes
// exclusive ownership of. sock may be nil when the caller intends to Bind
// later. handler runs once per fully-received frame; packetBufferSize is
// both the request payload bound and the response slice handed to it.
func NewNetworkReader(sock *transport.ListenSocket, handler api.RequestHandler, defaultEndpoint net.Addr, packetBufferSize, pooledBuffersPerBucket, preallocatedStateObjects int, opts ...Option) (*NetworkReader, error) {
	if handler == nil {
		return nil, api.NewError(api.ErrCodeInvalidConfig, "request handler must not be nil")
	}
	if packetBufferSize <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidConfig, "packet buffer size must be positive")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	r := &NetworkReader{
		cfg:              cfg,
		handler:          handler,
		sock:             sock,
		defaultEndpoint:  defaultEndpoint,
		packetBufferSize: packetBufferSize,
		bufPool:          pool.NewBufferPool(protocol.HeaderSize+packetBufferSize, pooledBuffersPerBucket),
		exec:             concurrency.NewExecutor(cfg.ExecutorWorkers, cfg.WorkerAffinity),
		ctrl:             control.NewAdapter(),
	}
	r.maxConns.Store(int64(cfg.MaxConnections))
	r.statePool = pool.NewStateObjectPool(preallocatedStateObjects,
		func() *api.OperationState { return &api.OperationState{Remote: defaultEndpoint} },
		func(s *api.OperationState) {
			api.ResetOperationState(s)
			s.Remote = defaultEndpoint
		},
		func(s *api.OperationState) bool { return s != nil },
		func(s *api.OperationState) { s.Buf = nil },
	)

	// Live gauge goes through a probe; cumulative counters are published
	// into the metrics registry at connection granularity (accept and
	// teardown), keeping the hot per-frame path free of registry writes.
	r.ctrl.RegisterDebugProbe("reader.active", func() any { return r.active.Load() })
	r.ctrl.SetMetric("reader.accepted", int64(0))
	r.ctrl.SetMetric("reader.closed", int64(0))
	r.ctrl.SetMetric("reader.bytes_in", int64(0))
	r.ctrl.SetMetric("reader.bytes_out", int64(0))
	r.ctrl.OnReload(func() {
		if v, ok := r.ctrl.GetConfig()["max_connections"]; ok {
			if n, ok := toInt64(v); ok {
				r.maxConns.Store(n)
			}
		}
	})
	return r, nil
}

// Bind opens the listening socket at local. Valid only when the reader was
// constructed without one.
func (r *NetworkReader) Bind(local *net.TCPAddr) error {
	if r.sock != nil {
		return api.NewError(api.ErrCodeInvalidConfig, "reader is already bound")
	}
	sock, err := transport.Listen(local.String())
	if err != nil {
		return api.MapOSError(err)
	}
	r.sock = sock
	return nil
}

// Addr returns the bound listening endpoint, or the default endpoint when
// unbound.
func (r *NetworkReader) Addr() net.Addr {
	if r.sock == nil {
		return r.defaultEndpoint
	}
	return r.sock.Addr()
}

// Control exposes the reader's metrics, debug probes, and dynamic
// configuration surface.
func (r *NetworkReader) Control() *control.Adapter {
	return r.ctrl
}

// Stats snapshots the reader's runtime counters.
func (r *NetworkReader) Stats() map[string]any {
	return r.ctrl.Stats()
}

// Start dispatches concurrentAccepts outstanding accept operations on the
// listening socket and returns. Each accept loop re-arms itself as soon as
// a connection lands, so listener-queue drain continues while accepted
// sockets move into their receive loops.
func (r *NetworkReader) Start(concurrentAccepts uint16) error {
	if r.sock == nil {
		return api.NewError(api.ErrCodeInvalidConfig, "reader is not bound")
	}
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if concurrentAccepts == 0 {
		concurrentAccepts = 1
	}
	for i := uint16(0); i < concurrentAccepts; i++ {
		r.accepts.Go(r.acceptLoop)
	}
	r.cfg.Logger.Info("reader started", "addr", r.sock.Addr(), "accepts", concurrentAccepts)
	return nil
}

// Stop trips the shutdown signal, closes the listening socket first so
// blocked accepts fail over immediately, then closes every open connection
// and blocks until all of them have drained and returned their state.
func (r *NetworkReader) Stop() {
	r.stopOnce.Do(func() {
		r.shutdown.Trigger()
		if r.sock != nil {
			r.sock.Close()
		}
		r.accepts.Wait()

		r.conns.Range(func(key, _ any) bool {
			key.(net.Conn).Close()
			return true
		})
		r.connWG.Wait()

		r.exec.Close()
		r.statePool.Dispose()
		r.cfg.Logger.Info("reader stopped")
	})
}

// Shutdown half-closes the listening side. Receiving new connections stops
// for ShutdownRecv and ShutdownBoth; in-flight connections keep draining.
func (r *NetworkReader) Shutdown(how api.ShutdownHow) error {
	if how == api.ShutdownSend {
		return nil
	}
	if r.sock == nil {
		return nil
	}
	return r.sock.Close()
}

// Dispose fully tears the reader down.
func (r *NetworkReader) Dispose() {
	r.Stop()
}

// acceptLoop keeps one accept operation outstanding until shutdown. A
// reset from a half-open peer is not an error: the state object goes back
// to the pool and the accept re-arms.
func (r *NetworkReader) acceptLoop() error {
	for {
		if r.shutdown.Triggered() {
			return nil
		}
		st := r.statePool.Rent()
		st.Token = api.Token{Kind: api.OpAccept}
		conn, err := r.sock.Accept()
		r.statePool.Return(st)
		if err != nil {
			if r.shutdown.Triggered() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) {
				continue
			}
			r.cfg.Logger.Warn("accept failed", "err", err)
			continue
		}

		if limit := r.maxConns.Load(); limit > 0 && r.active.Load() >= limit {
			conn.Close()
			r.cfg.Logger.Debug("connection limit reached, rejecting", "peer", conn.RemoteAddr())
			continue
		}

		r.ctrl.SetMetric("reader.accepted", r.accepted.Add(1))
		r.active.Add(1)
		r.conns.Store(conn, struct{}{})
		r.connWG.Add(1)
		go r.serve(conn)
	}
}

// serve runs the receive/dispatch/send loop for one accepted connection.
// After InlineFrameBudget back-to-back exchanges the continuation is
// escalated to the executor so one hot connection cannot monopolize its
// goroutine's scheduling slot.
func (r *NetworkReader) serve(conn net.Conn) {
	st := r.statePool.Rent()
	st.Remote = conn.RemoteAddr()
	buf, err := r.bufPool.Rent(protocol.HeaderSize + r.packetBufferSize)
	if err != nil {
		r.teardown(conn, st, nil)
		return
	}
	st.Buf = buf

	frames := 0
	var step func()
	step = func() {
		for {
			if r.shutdown.Triggered() {
				r.teardown(conn, st, buf)
				return
			}
			if frames++; frames > r.cfg.InlineFrameBudget {
				frames = 0
				if r.exec.Submit(step) == nil {
					return
				}
			}
			if err := r.exchange(conn, st); err != nil {
				r.logDisconnect(conn, err)
				r.teardown(conn, st, buf)
				return
			}
		}
	}
	step()
}

// exchange receives exactly one frame, dispatches it to the handler, and
// writes the response frame back when the handler asks for one.
func (r *NetworkReader) exchange(conn net.Conn, st *api.OperationState) error {
	st.Token = api.Token{Kind: api.OpReceive}
	if err := r.transferFull(conn, st, protocol.HeaderSize); err != nil {
		return err
	}
	length, err := protocol.Decode(st.Buf[:protocol.HeaderSize], uint32(r.packetBufferSize))
	if err != nil {
		return err
	}
	frameLen := protocol.HeaderSize + int(length)
	if err := r.transferFull(conn, st, frameLen); err != nil {
		return err
	}
	r.bytesIn.Add(int64(frameLen))
	request := st.Buf[protocol.HeaderSize:frameLen]

	respBuf, err := r.bufPool.Rent(protocol.HeaderSize + r.packetBufferSize)
	if err != nil {
		return err
	}
	n, keep, ok := r.invokeHandler(st.Remote, request, respBuf[protocol.HeaderSize:protocol.HeaderSize+r.packetBufferSize])
	if !ok {
		r.bufPool.Return(respBuf, false)
		return errHandlerPanic
	}
	if !keep || n <= 0 || n > r.packetBufferSize {
		r.bufPool.Return(respBuf, false)
		return nil
	}

	protocol.Encode(uint32(n), respBuf[:protocol.HeaderSize])
	respFrame := protocol.HeaderSize + n
	respState := api.OperationState{Buf: respBuf, Remote: st.Remote, Token: api.Token{Kind: api.OpSend}}
	err = r.sendFull(conn, &respState, respFrame)
	r.bufPool.Return(respBuf, false)
	if err != nil {
		return err
	}
	r.bytesOut.Add(int64(respFrame))
	return nil
}

// transferFull continues the receive until st.Token.Transferred reaches
// target, tolerating arbitrarily short reads.
func (r *NetworkReader) transferFull(conn net.Conn, st *api.OperationState, target int) error {
	for st.Token.Transferred < target {
		if r.shutdown.Triggered() {
			return api.NewError(api.ErrCodeShutdown, "reader is shutting down")
		}
		n, err := conn.Read(st.Buf[st.Token.Transferred:target])
		if n > 0 {
			st.Token.Transferred += n
		}
		if err != nil {
			return api.MapOSError(err)
		}
		if n == 0 {
			return api.NewError(api.ErrCodePeerClosed, "peer closed connection")
		}
	}
	return nil
}

// sendFull continues the send until the whole response frame is on the
// wire.
func (r *NetworkReader) sendFull(conn net.Conn, st *api.OperationState, frameLen int) error {
	for st.Token.Transferred < frameLen {
		if r.shutdown.Triggered() {
			return api.NewError(api.ErrCodeShutdown, "reader is shutting down")
		}
		n, err := conn.Write(st.Buf[st.Token.Transferred:frameLen])
		if n > 0 {
			st.Token.Transferred += n
		}
		if err != nil {
			return api.MapOSError(err)
		}
		if n == 0 {
			return api.NewError(api.ErrCodePeerClosed, "peer closed connection")
		}
	}
	return nil
}

// invokeHandler shields the serve loop from a panicking handler.
func (r *NetworkReader) invokeHandler(peer net.Addr, request, response []byte) (n int, keep bool, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.cfg.Logger.Error("request handler panicked", "peer", peer, "panic", rec)
			ok = false
		}
	}()
	n, keep = r.handler(peer, request, response)
	return n, keep, true
}

// teardown closes conn and returns its state and buffer, leaving the rest
// of the reader untouched.
func (r *NetworkReader) teardown(conn net.Conn, st *api.OperationState, buf []byte) {
	conn.Close()
	r.conns.Delete(conn)
	if buf != nil {
		r.bufPool.Return(buf, false)
	}
	st.Buf = nil
	r.statePool.Return(st)
	r.active.Add(-1)
	r.ctrl.SetMetric("reader.closed", r.closedConns.Add(1))
	r.ctrl.SetMetric("reader.bytes_in", r.bytesIn.Load())
	r.ctrl.SetMetric("reader.bytes_out", r.bytesOut.Load())
	r.connWG.Done()
}

func (r *NetworkReader) logDisconnect(conn net.Conn, err error) {
	if errors.Is(err, api.ErrPeerClosed) || errors.Is(err, api.ErrShutdown) {
		r.cfg.Logger.Debug("connection closed", "peer", conn.RemoteAddr())
		return
	}
	r.cfg.Logger.Warn("connection failed", "peer", conn.RemoteAddr(), "err", err)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
