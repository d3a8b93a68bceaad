package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mineichen/rigcore/internal/rig"
)

// counterState collects applied values so tests can assert mutation order.
type counterState struct {
	applied []int
}

type applyMsg struct {
	Value    int
	Deferred bool
}

func (applyMsg) Output() (n int) { return }

type readLogMsg struct{}

func (readLogMsg) Output() (log []int) { return }

// startCounterDevice registers a device whose applyMsg handler mutates
// state inline and optionally answers via a deferred computation.
func startCounterDevice(t *testing.T, s *System, release <-chan struct{}) (rig.DeviceID, func()) {
	t.Helper()
	id := rig.NewDeviceID()
	device := Register[counterState](s, id)

	Handle(device, func(_ context.Context, state *counterState, msg applyMsg) Response[int] {
		state.applied = append(state.applied, msg.Value)
		if msg.Deferred {
			value := msg.Value
			return Defer(func(ctx context.Context) (int, error) {
				select {
				case <-release:
				case <-ctx.Done():
					return 0, ctx.Err()
				}
				return value, nil
			})
		}
		return Reply(msg.Value, nil)
	})
	Handle(device, func(_ context.Context, state *counterState, _ readLogMsg) Response[[]int] {
		return Reply(append([]int(nil), state.applied...), nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		device.Run(ctx, counterState{})
	}()
	return id, func() {
		cancel()
		<-done
	}
}

func TestStateMutationOrderMatchesEnqueueOrder(t *testing.T) {
	s := NewSystem()
	release := make(chan struct{})
	close(release) // deferred tasks finish immediately
	id, stop := startCounterDevice(t, s, release)
	defer stop()

	// interleave immediate and deferred answers; mutation order must
	// stay the enqueue order regardless
	for i := 0; i < 20; i++ {
		if err := Tell(s, id, applyMsg{Value: i, Deferred: i%3 == 0}); err != nil {
			t.Fatalf("Tell(%d): %v", i, err)
		}
	}

	log, err := Ask(context.Background(), s, id, readLogMsg{})
	if err != nil {
		t.Fatalf("Ask(readLog): %v", err)
	}
	if len(log) != 20 {
		t.Fatalf("applied %d messages, want 20", len(log))
	}
	for i, v := range log {
		if v != i {
			t.Fatalf("mutation order broken at %d: got %v", i, log)
		}
	}
}

func TestDeferredDoesNotBlockMailbox(t *testing.T) {
	s := NewSystem()
	release := make(chan struct{})
	id, stop := startCounterDevice(t, s, release)
	defer stop()

	deferredDone := make(chan error, 1)
	go func() {
		_, err := Ask(context.Background(), s, id, applyMsg{Value: 1, Deferred: true})
		deferredDone <- err
	}()

	// the immediate message must be answered while the deferred one is
	// still pending
	waitImmediate := make(chan struct{})
	go func() {
		defer close(waitImmediate)
		if _, err := Ask(context.Background(), s, id, applyMsg{Value: 2}); err != nil {
			t.Errorf("immediate ask: %v", err)
		}
	}()

	select {
	case <-waitImmediate:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate message was blocked behind a deferred computation")
	}

	close(release)
	if err := <-deferredDone; err != nil {
		t.Fatalf("deferred ask: %v", err)
	}
}

func TestAskUnknownDevice(t *testing.T) {
	s := NewSystem()
	_, err := Ask(context.Background(), s, rig.NewDeviceID(), applyMsg{Value: 1})
	if !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("error = %v, want ErrUnknownDevice", err)
	}
}

func TestAskSingleSelector(t *testing.T) {
	s := NewSystem()

	// no handler registered at all
	if _, err := AskSingle(context.Background(), s, applyMsg{Value: 1}); !errors.Is(err, ErrAmbiguousHandler) {
		t.Fatalf("error = %v, want ErrAmbiguousHandler", err)
	}

	release := make(chan struct{})
	close(release)
	_, stop1 := startCounterDevice(t, s, release)
	defer stop1()

	if _, err := AskSingle(context.Background(), s, applyMsg{Value: 1}); err != nil {
		t.Fatalf("single handler must resolve implicitly: %v", err)
	}

	_, stop2 := startCounterDevice(t, s, release)
	defer stop2()

	if _, err := AskSingle(context.Background(), s, applyMsg{Value: 1}); !errors.Is(err, ErrAmbiguousHandler) {
		t.Fatalf("error = %v, want ErrAmbiguousHandler with two candidates", err)
	}
}

func TestCancelledAskResolvesAborted(t *testing.T) {
	s := NewSystem()
	release := make(chan struct{})
	id, stop := startCounterDevice(t, s, release)
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var askErr error
	go func() {
		defer wg.Done()
		_, askErr = Ask(ctx, s, id, applyMsg{Value: 1, Deferred: true})
	}()

	cancel()
	wg.Wait()
	if !errors.Is(askErr, ErrAborted) {
		t.Fatalf("error = %v, want ErrAborted", askErr)
	}

	// the device must keep processing subsequent messages
	close(release)
	if _, err := Ask(context.Background(), s, id, applyMsg{Value: 2}); err != nil {
		t.Fatalf("device unusable after aborted ask: %v", err)
	}
}

func TestFullMailboxFailsFast(t *testing.T) {
	s := NewSystem()
	id := rig.NewDeviceID()
	device := Register[counterState](s, id)
	Handle(device, func(_ context.Context, state *counterState, msg applyMsg) Response[int] {
		return Reply(msg.Value, nil)
	})
	// Run never starts, so the mailbox fills up

	var err error
	for i := 0; i < mailboxCapacity+1; i++ {
		err = Tell(s, id, applyMsg{Value: i})
	}
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("error = %v, want ErrBusy after %d sends", err, mailboxCapacity+1)
	}
}

type strayMsg struct{}

func (strayMsg) Output() (s string) { return }

func TestUnknownMessageType(t *testing.T) {
	s := NewSystem()
	release := make(chan struct{})
	close(release)
	id, stop := startCounterDevice(t, s, release)
	defer stop()

	_, err := Ask(context.Background(), s, id, strayMsg{})
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("error = %v, want ErrUnknownMessageType", err)
	}
}

func TestStopUnregistersDevice(t *testing.T) {
	s := NewSystem()
	release := make(chan struct{})
	close(release)
	id, stop := startCounterDevice(t, s, release)

	stop()
	if s.HasDevice(id) {
		t.Fatal("stopped device still registered")
	}
	if n := len(DevicesFor[applyMsg](s)); n != 0 {
		t.Fatalf("handler index still lists %d devices", n)
	}
}

type faultMsg struct {
	Fail     bool
	Deferred bool
}

func (faultMsg) Output() (n int) { return }

type recordedCall struct {
	deviceID rig.DeviceID
	msgType  string
	err      error
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) RecordMessage(id rig.DeviceID, messageType string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{deviceID: id, msgType: messageType, err: err})
}

func (r *fakeRecorder) snapshot() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedCall(nil), r.calls...)
}

func TestRecorderObservesHandlerOutcome(t *testing.T) {
	s := NewSystem()
	rec := &fakeRecorder{}
	s.SetRecorder(rec)

	errFault := errors.New("handler fault")
	id := rig.NewDeviceID()
	device := Register[counterState](s, id)
	Handle(device, func(_ context.Context, _ *counterState, msg faultMsg) Response[int] {
		if msg.Deferred {
			fail := msg.Fail
			return Defer(func(context.Context) (int, error) {
				if fail {
					return 0, errFault
				}
				return 1, nil
			})
		}
		if msg.Fail {
			return Reply(0, errFault)
		}
		return Reply(1, nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		device.Run(ctx, counterState{})
	}()
	defer func() {
		cancel()
		<-done
	}()

	if _, err := Ask(context.Background(), s, id, faultMsg{}); err != nil {
		t.Fatalf("ok ask: %v", err)
	}
	if _, err := Ask(context.Background(), s, id, faultMsg{Fail: true}); !errors.Is(err, errFault) {
		t.Fatalf("failing ask returned %v, want handler fault", err)
	}
	if _, err := Ask(context.Background(), s, id, faultMsg{Fail: true, Deferred: true}); !errors.Is(err, errFault) {
		t.Fatalf("failing deferred ask returned %v, want handler fault", err)
	}

	// deferred outcomes are recorded from the task goroutine
	deadline := time.Now().Add(2 * time.Second)
	var calls []recordedCall
	for {
		calls = rec.snapshot()
		if len(calls) == 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if len(calls) != 3 {
		t.Fatalf("recorded %d messages, want 3", len(calls))
	}
	if calls[0].err != nil {
		t.Errorf("successful handler recorded err = %v", calls[0].err)
	}
	if !errors.Is(calls[1].err, errFault) {
		t.Errorf("failing handler recorded err = %v, want handler fault", calls[1].err)
	}
	if !errors.Is(calls[2].err, errFault) {
		t.Errorf("failing deferred task recorded err = %v, want handler fault", calls[2].err)
	}
	for _, c := range calls {
		if c.deviceID != id {
			t.Errorf("recorded device %v, want %v", c.deviceID, id)
		}
		if c.msgType != "actor.faultMsg" {
			t.Errorf("recorded message type %q", c.msgType)
		}
	}
}

func TestShutdownLeavesNoAskWaiting(t *testing.T) {
	s := NewSystem()
	release := make(chan struct{})
	close(release)
	id, stop := startCounterDevice(t, s, release)

	// Hammer the device from several goroutines while it shuts down.
	// Every Ask must resolve: answered, rejected, or refused at
	// dispatch - never parked on an abandoned mailbox.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 16; i++ {
				_, _ = Ask(context.Background(), s, id, applyMsg{Value: i})
			}
		}()
	}

	stop()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		wg.Wait()
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("an ask was left waiting across device shutdown")
	}
}

func TestActivationGuardCancelsPrevious(t *testing.T) {
	guard := NewActivationGuard()
	first := guard.Begin(context.Background())
	second := guard.Begin(context.Background())

	select {
	case <-first.Done():
	default:
		t.Fatal("previous activation context must be cancelled")
	}
	select {
	case <-second.Done():
		t.Fatal("current activation context must stay alive")
	default:
	}

	guard.Abort()
	select {
	case <-second.Done():
	default:
		t.Fatal("Abort must cancel the current activation")
	}
}
