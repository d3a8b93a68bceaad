package actor

import (
	"context"

	"github.com/mineichen/rigcore/internal/rig"
)

// Ask sends msg to the device with the given id and awaits the typed
// result. Dispatch fails immediately when no device is registered for id
// or its mailbox is full. Cancelling ctx resolves the wait with
// ErrAborted; the device-side computation keeps running unless it
// observes the same ctx (cancellation is cooperative, not preemptive).
func Ask[M Message[O], O any](ctx context.Context, s *System, id rig.DeviceID, msg M) (O, error) {
	var zero O
	resp := newResponder[O](s.logger, messageType[M]().String())
	env := envelope{
		msgType:   messageType[M](),
		msg:       msg,
		responder: resp,
		reject:    resp.reject,
	}
	if err := s.trySend(id, env); err != nil {
		return zero, err
	}

	select {
	case r := <-resp.ch:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ErrAborted
	}
}

// AskSingle resolves the implicit selector "the single registered
// handler of this message type" and asks it. It fails with
// ErrAmbiguousHandler when zero or more than one device qualifies.
func AskSingle[M Message[O], O any](ctx context.Context, s *System, msg M) (O, error) {
	id, err := s.singleHandler(messageType[M]())
	if err != nil {
		var zero O
		return zero, err
	}
	return Ask[M](ctx, s, id, msg)
}

// Tell enqueues msg without awaiting a response. Error handling is
// limited to whether the target accepts the message into its queue.
func Tell[M Message[O], O any](s *System, id rig.DeviceID, msg M) error {
	return s.trySend(id, envelope{
		msgType: messageType[M](),
		msg:     msg,
	})
}
