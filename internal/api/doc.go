// Package api exposes the pool master's loopback status endpoint. It is
// an operator surface, not part of the application's request path: the
// serving pool's own traffic goes straight to the worker processes on
// the shared socket.
package api
