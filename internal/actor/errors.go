package actor

import (
	"errors"
	"fmt"

	"github.com/mineichen/rigcore/internal/rig"
)

// Dispatch errors for the actor package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, actor.ErrUnknownDevice) {
//	    // no actor registered for this id
//	}
var (
	// ErrUnknownDevice is returned when no actor is registered for the
	// requested device id. Dispatch fails immediately; a message is
	// never created in a nonexistent mailbox.
	ErrUnknownDevice = errors.New("actor: unknown device")

	// ErrAmbiguousHandler is returned when an implicit selector does not
	// resolve to exactly one registered handler.
	ErrAmbiguousHandler = errors.New("actor: ambiguous handler")

	// ErrUnknownMessageType is returned when the target device has no
	// handler for the message type.
	ErrUnknownMessageType = errors.New("actor: unknown message type")

	// ErrBusy is returned when a device mailbox has no more space.
	// Sending never blocks; a full queue fails fast.
	ErrBusy = errors.New("actor: mailbox full")

	// ErrAborted is returned when the caller's wait was cancelled before
	// the device responded. The device-side computation is not stopped
	// unless it observes the same context.
	ErrAborted = errors.New("actor: aborted")
)

// UnknownDeviceError wraps ErrUnknownDevice with the offending id.
func UnknownDeviceError(id rig.DeviceID, detail string) error {
	return fmt.Errorf("%w: %s (%s)", ErrUnknownDevice, id, detail)
}

// AmbiguousHandlerError wraps ErrAmbiguousHandler with the message type
// and the number of candidate devices.
func AmbiguousHandlerError(messageType string, candidates int) error {
	return fmt.Errorf("%w: %d devices handle %s, selector must name one", ErrAmbiguousHandler, candidates, messageType)
}

// BusyError wraps ErrBusy with the congested device id.
func BusyError(id rig.DeviceID) error {
	return fmt.Errorf("%w: queue for device %s has no more space", ErrBusy, id)
}
