package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	domainscan "veriscan/internal/domain/scan"
	"veriscan/internal/errs"
	"veriscan/internal/ports"
)

// ErrWaitTimeout is a soft condition, not a job failure: the record may still
// complete later and will appear on the next listing refresh.
var ErrWaitTimeout = errors.New("timed out waiting for scan result")

const DefaultWaitTimeout = 30 * time.Second

type WaitState string

const (
	WaitWaiting  WaitState = "waiting"
	WaitResolved WaitState = "resolved"
	WaitTimedOut WaitState = "timedOut"
)

// Waiter is the viewer-side state machine for one pending scan. It filters
// the system-wide change feed by its correlation key (record id or filename)
// and resolves exactly once; duplicate or irrelevant events cannot move it
// out of a terminal state.
type Waiter struct {
	mu         sync.Mutex
	pendingKey string
	state      WaitState
	record     domainscan.ScanRecord
	resolved   chan struct{}

	timeout   time.Duration
	onRefresh func()
}

// NewWaiter builds a waiter for one correlation key. onRefresh, when set,
// fires on every insert/update event regardless of key match; the viewer
// uses it to keep its background history listing eventually consistent.
func NewWaiter(pendingKey string, timeout time.Duration, onRefresh func()) *Waiter {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &Waiter{
		pendingKey: pendingKey,
		state:      WaitWaiting,
		resolved:   make(chan struct{}),
		timeout:    timeout,
		onRefresh:  onRefresh,
	}
}

// OnEvent consumes one change event. Safe to call concurrently and with
// duplicates; re-delivering an event leaves the waiter in the same state.
func (w *Waiter) OnEvent(event ports.ChangeEvent) {
	if w.onRefresh != nil {
		w.onRefresh()
	}

	if !event.Record.Done() || !event.Record.MatchesKey(w.pendingKey) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WaitWaiting {
		return
	}
	w.state = WaitResolved
	w.record = event.Record
	close(w.resolved)
}

// Attach subscribes the waiter to a bus. The returned teardown must be called
// when the consuming view goes away.
func (w *Waiter) Attach(ctx context.Context, bus ports.EventBus) (func(), error) {
	return bus.Subscribe(ctx, w.OnEvent)
}

// Wait blocks until the matching terminal event arrives, the bounded wait
// expires, or ctx is canceled. On expiry the waiter transitions to timedOut
// and reports ErrWaitTimeout without erroring the underlying job.
func (w *Waiter) Wait(ctx context.Context) (domainscan.ScanRecord, error) {
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case <-w.resolved:
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.record, nil
	case <-timer.C:
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.state == WaitResolved {
			// Resolution raced the timer; the result wins.
			return w.record, nil
		}
		w.state = WaitTimedOut
		return domainscan.ScanRecord{}, ErrWaitTimeout
	case <-ctx.Done():
		return domainscan.ScanRecord{}, errs.Wrap(ctx.Err(), "wait for scan result")
	}
}

func (w *Waiter) State() WaitState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Waiter) PendingKey() string {
	return w.pendingKey
}
