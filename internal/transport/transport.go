// Package transport models the link to the remote device as a pluggable
// capability.
//
// The sync engine only depends on the Transport interface. Production wiring
// uses Simulated, which adds configurable latency and fault injection so the
// engine's partial-failure handling can be exercised deterministically.
package transport

import (
	"context"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

// Transport delivers a single transcript to the device.
//
// Transfer returns nil when the device acknowledged the transcript, a
// *transcript.TransferFault when the delivery failed, or ctx.Err() when the
// context ended first.
type Transport interface {
	Transfer(ctx context.Context, t transcript.Transcript) error
}

// Func adapts a plain function to Transport.
type Func func(ctx context.Context, t transcript.Transcript) error

// Transfer calls f.
func (f Func) Transfer(ctx context.Context, t transcript.Transcript) error {
	return f(ctx, t)
}
