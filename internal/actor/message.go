package actor

import (
	"context"
	"reflect"
)

// Message binds a message shape to its success output type O. Every
// request/response pair in the system is an instance of this contract.
// The Output method is a type marker only; it is never called.
type Message[O any] interface {
	Output() O
}

// Response is what a handler produces for one message: either an
// immediate result or a deferred computation. Construct it via Reply or
// Defer.
type Response[O any] struct {
	value    O
	err      error
	deferred func(context.Context) (O, error)
}

// Reply answers the message immediately, while still holding exclusive
// access to the device state.
func Reply[O any](value O, err error) Response[O] {
	return Response[O]{value: value, err: err}
}

// Defer schedules fn independently of the mailbox. The mailbox loop
// continues with the next queued message while fn runs; the responder is
// owned by fn's goroutine and delivers whenever it completes. fn must
// not touch the device state.
func Defer[O any](fn func(context.Context) (O, error)) Response[O] {
	return Response[O]{deferred: fn}
}

// envelope is the untyped unit travelling through a mailbox.
type envelope struct {
	msgType reflect.Type
	msg     any
	// respond delivers the typed result; nil for fire-and-forget sends.
	responder any
	// reject short-circuits with a dispatch error without invoking the
	// typed handler path.
	reject func(error)
}

func messageType[M any]() reflect.Type {
	return reflect.TypeOf((*M)(nil)).Elem()
}
