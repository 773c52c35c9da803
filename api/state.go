// File: api/state.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pooled completion-state carrier for one in-flight socket operation.

package api

import "net"

// OperationKind discriminates what a completion continuation should do
// when the socket call it belongs to finishes.
type OperationKind int

const (
	OpNone OperationKind = iota
	OpAccept
	OpConnect
	OpDisconnect
	OpReceive
	OpSend
)

func (k OperationKind) String() string {
	switch k {
	case OpAccept:
		return "accept"
	case OpConnect:
		return "connect"
	case OpDisconnect:
		return "disconnect"
	case OpReceive:
		return "receive"
	case OpSend:
		return "send"
	default:
		return "none"
	}
}

// Token is the tagged user payload attached to an in-flight operation.
// Kind selects which fields are meaningful:
//
//	OpAccept:             none (accepts carry no user payload)
//	OpConnect/OpDisconnect: Sink
//	OpReceive:            Sink, Dst (caller destination), Transferred
//	OpSend:               Sink, Transferred
//
// Server-side transmissions use OpReceive/OpSend with a nil Sink: the
// reader never surfaces per-message completions outward.
type Token struct {
	Kind OperationKind

	// Sink is resolved when the operation completes. Nil for accepts and
	// for all reader-side transmissions.
	Sink *CompletionSink

	// Dst is the caller-supplied destination slice for a client read; the
	// rented transmission buffer is copied into it on completion.
	Dst []byte

	// Transferred counts the bytes already moved through the rented
	// transmission buffer for the current frame.
	Transferred int
}

// OperationState is the pooled bag of per-operation state threaded through
// each partial-I/O continuation. Exactly one operation references a state
// object at a time; it is rented before the socket call is issued and
// returned once the operation terminates, whether by success, error, or
// cancellation.
type OperationState struct {
	// Buf is the rented transmission buffer, nil while no frame is staged.
	Buf []byte

	// Token identifies what to do on completion.
	Token Token

	// Remote is the peer endpoint the operation targets. Before first use
	// it holds the endpoint the owning reader or writer was constructed
	// with.
	Remote net.Addr
}

// ResetOperationState clears s for reuse, preserving nothing but the
// allocation itself. Used as the pool's reset hook.
func ResetOperationState(s *OperationState) {
	s.Buf = nil
	s.Token = Token{}
	s.Remote = nil
}
