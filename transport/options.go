package transport

import (
	"github.com/luma/resp3d/storage"
	"go.uber.org/zap"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on
	Port int

	// Reuseport controls setting SO_REUSEPORT. Without it only a single
	// listener can bind the address.
	Reuseport bool

	// NumListeners is the number of listeners sharing the port. Defaults to
	// the number of CPUs when Reuseport is set, otherwise one.
	NumListeners int

	// MaxPayloadSize bounds lines, blob lengths and aggregate counts read
	// from clients. Zero disables the limit.
	MaxPayloadSize int

	// MaxDepth bounds how deeply client messages may nest. Zero disables
	// the limit.
	MaxDepth int

	// RateLimit is the number of commands per second each client IP may
	// send, with bursts of up to RateBurst. Zero disables rate limiting.
	RateLimit float64
	RateBurst int

	// Trace logs every message read and written. This is only useful in
	// local debugging
	Trace bool

	Store storage.Store

	Log *zap.Logger
}
