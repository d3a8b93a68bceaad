package actor

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/mineichen/rigcore/internal/rig"
)

// handlerFunc processes one envelope with exclusive access to the state.
// It returns a non-nil task when the response was deferred, otherwise
// the immediate reply's error.
type handlerFunc[S any] func(ctx context.Context, state *S, env envelope) (func(context.Context) error, error)

// Device is one actor under construction: register handlers, then call
// Run exactly once. The mailbox is created on Register, so senders can
// enqueue before Run starts draining.
type Device[S any] struct {
	id       rig.DeviceID
	system   *System
	mailbox  chan envelope
	handlers map[reflect.Type]handlerFunc[S]
}

// Register creates the mailbox for id and returns the device builder.
func Register[S any](s *System, id rig.DeviceID) *Device[S] {
	return &Device[S]{
		id:       id,
		system:   s,
		mailbox:  s.register(id),
		handlers: make(map[reflect.Type]handlerFunc[S]),
	}
}

// ID returns the device identity.
func (d *Device[S]) ID() rig.DeviceID {
	return d.id
}

// Handle registers fn for message type M and publishes the capability in
// the system's handler index. Not safe to call after Run started.
func Handle[S any, M Message[O], O any](d *Device[S], fn func(ctx context.Context, state *S, msg M) Response[O]) {
	t := messageType[M]()
	d.handlers[t] = func(ctx context.Context, state *S, env envelope) (func(context.Context) error, error) {
		msg := env.msg.(M)
		resp, _ := env.responder.(*responder[O])

		r := fn(ctx, state, msg)
		if r.deferred != nil {
			deferred := r.deferred
			return func(taskCtx context.Context) error {
				value, err := deferred(taskCtx)
				if resp != nil {
					resp.respond(value, err)
				}
				return err
			}, nil
		}
		if resp != nil {
			resp.respond(r.value, r.err)
		}
		return nil, r.err
	}
	d.system.publishHandler(t, d.id)
}

// Run drains the mailbox until ctx is cancelled, processing one message
// at a time: state mutations are applied in exact enqueue order. Deferred
// tasks run concurrently with subsequent messages; Run waits for all of
// them before returning the final state and unregistering the device.
func (d *Device[S]) Run(ctx context.Context, state S) S {
	logger := d.system.logger
	var pending sync.WaitGroup

	defer func() {
		pending.Wait()
		types := make([]reflect.Type, 0, len(d.handlers))
		for t := range d.handlers {
			types = append(types, t)
		}
		d.system.unregister(d.id, types)
		// Sends hold the directory lock, so after unregister nothing can
		// reach this mailbox anymore. One final drain answers messages
		// that slipped in between the ctx.Done drain and unregister.
		d.rejectQueued()
		logger.Debug("device actor stopped", "device_id", d.id)
	}()

	for {
		select {
		case <-ctx.Done():
			d.rejectQueued()
			return state
		case env := <-d.mailbox:
			handler, ok := d.handlers[env.msgType]
			if !ok {
				if env.reject != nil {
					env.reject(ErrUnknownMessageType)
				}
				continue
			}

			start := time.Now()
			task, err := handler(ctx, &state, env)
			if task != nil {
				// Deferred messages count as handled when the task
				// produced the response, with the outcome it produced.
				pending.Add(1)
				msgType := env.msgType
				go func() {
					defer pending.Done()
					taskErr := task(ctx)
					d.system.record(d.id, msgType, time.Since(start), taskErr)
				}()
				continue
			}
			d.system.record(d.id, env.msgType, time.Since(start), err)
		}
	}
}

// rejectQueued answers messages still sitting in the mailbox when the
// actor stops, so callers do not wait for a response that never comes.
func (d *Device[S]) rejectQueued() {
	for {
		select {
		case env := <-d.mailbox:
			if env.reject != nil {
				env.reject(UnknownDeviceError(d.id, "device stopped"))
			}
		default:
			return
		}
	}
}
