package actor

import "time"

// result carries a typed outcome over the one-shot reply channel.
type result[O any] struct {
	value O
	err   error
}

// responder owns one message's reply channel. Respond is called exactly
// once, either inline by the mailbox loop or by the deferred goroutine
// that was handed ownership.
type responder[O any] struct {
	ch      chan result[O]
	start   time.Time
	logger  Logger
	msgName string
}

func newResponder[O any](logger Logger, msgName string) *responder[O] {
	return &responder[O]{
		ch:      make(chan result[O], 1),
		start:   time.Now(),
		logger:  logger,
		msgName: msgName,
	}
}

// respond delivers the result. When the caller is gone the result is
// logged and dropped; this is not a fatal condition.
func (r *responder[O]) respond(value O, err error) {
	select {
	case r.ch <- result[O]{value: value, err: err}:
	default:
		r.logger.Debug("dropping response, listener was gone",
			"message", r.msgName,
			"elapsed", time.Since(r.start),
		)
	}
}

func (r *responder[O]) reject(err error) {
	var zero O
	r.respond(zero, err)
}
