package api

import "net"

// TransmissionResult is the value surfaced by a synchronous writer
// operation: the number of bytes actually transferred, the
// peer endpoint involved, and a view over the buffer that carried them.
//
// Buffer is a view over the caller's own slice, not over pooled storage:
// for a write it is the source payload, for a read the filled prefix of
// the destination.
type TransmissionResult struct {
	BytesTransferred int
	Peer             net.Addr
	Buffer           []byte
}
