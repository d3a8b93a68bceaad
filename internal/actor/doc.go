// Package actor implements the message-dispatch runtime for device actors.
//
// Each device runs as one goroutine owning private mutable state and
// draining a private, ordered mailbox one message at a time. The System
// is the directory from device identity to mailbox and the single entry
// point (Ask/AskSingle/Tell) used by all external callers.
//
// # Message Contract
//
// A message type declares its success output through the Message[O]
// marker:
//
//	type CaptureImage struct{ Timeout time.Duration }
//
//	func (CaptureImage) Output() (f Frame) { return }
//
// Handlers consume (ctx, state, message) and produce a Response: either
// an immediate Reply computed while holding exclusive state access, or a
// Defer closure scheduled on its own goroutine so slow computations never
// block subsequent messages to the same device. State mutation order
// always matches enqueue order; delivery order across callers is
// unspecified once deferral is used.
//
// # Ordering & Cancellation
//
// Each mailbox is strict FIFO with a single consumer; this is the
// system's principal ordering guarantee. No ordering is implied across
// devices. Cancellation is cooperative: cancelling the Ask context
// resolves the caller's wait with ErrAborted, but device-side work only
// stops early if it observes the same context.
//
// # Thread Safety
//
// The System is safe for concurrent use. Device state is confined to its
// goroutine and never shared.
package actor
