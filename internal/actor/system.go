package actor

import (
	"reflect"
	"sync"
	"time"

	"github.com/mineichen/rigcore/internal/rig"
)

// mailboxCapacity bounds each device's queue. Sending to a full mailbox
// fails fast with ErrBusy instead of blocking the sender.
const mailboxCapacity = 10

// Logger defines the logging interface used by the actor runtime.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder observes handled messages. Implementations must not block;
// the telemetry package provides an InfluxDB-backed one.
type Recorder interface {
	RecordMessage(deviceID rig.DeviceID, messageType string, elapsed time.Duration, err error)
}

// System is the directory mapping device identity to mailbox. It
// arbitrates dispatch-time failures (unknown device, busy) and resolves
// implicit single-handler selectors.
//
// All methods are safe for concurrent use.
type System struct {
	mu        sync.RWMutex
	mailboxes map[rig.DeviceID]chan envelope
	// handlers indexes which devices can process a message type.
	handlers map[reflect.Type]map[rig.DeviceID]struct{}

	logger   Logger
	recorder Recorder
}

// NewSystem returns an empty actor system.
func NewSystem() *System {
	return &System{
		mailboxes: make(map[rig.DeviceID]chan envelope),
		handlers:  make(map[reflect.Type]map[rig.DeviceID]struct{}),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger used by the system and all devices
// registered afterwards.
func (s *System) SetLogger(logger Logger) {
	s.logger = logger
}

// SetRecorder installs a telemetry recorder for handled messages.
func (s *System) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

// HasDevice reports whether an actor is registered for id.
func (s *System) HasDevice(id rig.DeviceID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.mailboxes[id]
	return ok
}

// DeviceCount returns the number of registered actors.
func (s *System) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mailboxes)
}

// trySend enqueues env for id without blocking. The directory lock is
// held across the send itself, so a successful enqueue always
// happens-before unregister: once a device left the directory, no
// sender can still reach its mailbox.
func (s *System) trySend(id rig.DeviceID, env envelope) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mb, ok := s.mailboxes[id]
	if !ok {
		return UnknownDeviceError(id, "no message queue for this device")
	}
	select {
	case mb <- env:
		return nil
	default:
		return BusyError(id)
	}
}

// singleHandler resolves the implicit "the one device handling this
// message type" selector.
func (s *System) singleHandler(msgType reflect.Type) (rig.DeviceID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.handlers[msgType]
	if len(ids) != 1 {
		return rig.DeviceID{}, AmbiguousHandlerError(msgType.String(), len(ids))
	}
	for id := range ids {
		return id, nil
	}
	panic("unreachable")
}

func (s *System) publishHandler(msgType reflect.Type, id rig.DeviceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.handlers[msgType]
	if !ok {
		set = make(map[rig.DeviceID]struct{})
		s.handlers[msgType] = set
	}
	set[id] = struct{}{}
}

func (s *System) register(id rig.DeviceID) chan envelope {
	mb := make(chan envelope, mailboxCapacity)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailboxes[id] = mb
	return mb
}

// unregister removes the device from the directory and revokes its
// message-type responsibilities. Called when the device's Run returns.
func (s *System) unregister(id rig.DeviceID, msgTypes []reflect.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mailboxes, id)
	for _, t := range msgTypes {
		if set, ok := s.handlers[t]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.handlers, t)
			}
		}
	}
}

func (s *System) record(id rig.DeviceID, msgType reflect.Type, elapsed time.Duration, err error) {
	if s.recorder != nil {
		s.recorder.RecordMessage(id, msgType.String(), elapsed, err)
	}
}

// DevicesFor returns the ids of all devices able to handle M. Useful to
// answer "is anyone listening" without taking an ownership edge.
func DevicesFor[M Message[O], O any](s *System) []rig.DeviceID {
	t := messageType[M]()
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]rig.DeviceID, 0, len(s.handlers[t]))
	for id := range s.handlers[t] {
		ids = append(ids, id)
	}
	return ids
}
