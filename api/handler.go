package api

import "net"

// RequestHandler is the sole user-supplied extension point of the stream
// reader. It is invoked once per fully-received frame, on the
// completion worker that received it, and must not block indefinitely since
// it holds that worker until it returns.
//
// request holds exactly the received payload. response has exactly the
// reader's packet buffer size available for the handler to fill a prefix
// of; n is the number of bytes the handler wrote into it.
// keep reports whether a response frame should be written back (true) or
// the exchange is fire-and-forget (false).
type RequestHandler func(peer net.Addr, request []byte, response []byte) (n int, keep bool)
