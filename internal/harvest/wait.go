// internal/harvest/wait.go
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type conditionKind string

const (
	condPresent   conditionKind = "present"
	condVisible   conditionKind = "visible"
	condClickable conditionKind = "clickable"
)

// Condition is a render-ready predicate over the live UI: the element behind
// a locator is present in the DOM, visible, or clickable (present, visible
// and enabled).
type Condition struct {
	kind conditionKind
	loc  Locator
}

func Present(loc Locator) Condition   { return Condition{kind: condPresent, loc: loc} }
func Visible(loc Locator) Condition   { return Condition{kind: condVisible, loc: loc} }
func Clickable(loc Locator) Condition { return Condition{kind: condClickable, loc: loc} }

// Describe renders the condition for logs and timeout errors.
func (c Condition) Describe() string {
	return fmt.Sprintf("%s(%s)", c.kind, c.loc)
}

// Waiter blocks until a condition holds or a timeout elapses, polling at a
// fixed sub-second interval. It only observes; it never mutates UI state.
type Waiter struct {
	session  Session
	interval time.Duration
}

// NewWaiter builds a Waiter polling at the given interval. Intervals that are
// zero or negative fall back to 250ms.
func NewWaiter(session Session, interval time.Duration) *Waiter {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Waiter{session: session, interval: interval}
}

// Await polls until cond is satisfied, returning the element handle that
// satisfied it. On expiry it returns a *WaitTimeoutError carrying the
// condition description; the caller decides whether that is fatal.
func (w *Waiter) Await(ctx context.Context, cond Condition, timeout time.Duration) (Element, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		el, ready, err := w.probe(ctx, cond)
		if err != nil {
			return nil, err
		}
		if ready {
			return el, nil
		}
		if !time.Now().Before(deadline) {
			return nil, &WaitTimeoutError{Condition: cond.Describe(), Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// probe performs a single, non-blocking evaluation of the condition.
// A vanished element between resolution and inspection counts as not ready,
// never as a failure; the next tick re-resolves from scratch.
func (w *Waiter) probe(ctx context.Context, cond Condition) (Element, bool, error) {
	el, err := w.session.Find(ctx, cond.loc)
	if errors.Is(err, ErrElementNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	switch cond.kind {
	case condPresent:
		return el, true, nil
	case condVisible:
		visible, err := w.session.IsVisible(ctx, el)
		if err != nil || !visible {
			return nil, false, nil
		}
		return el, true, nil
	case condClickable:
		visible, err := w.session.IsVisible(ctx, el)
		if err != nil || !visible {
			return nil, false, nil
		}
		enabled, err := w.session.IsEnabled(ctx, el)
		if err != nil || !enabled {
			return nil, false, nil
		}
		return el, true, nil
	default:
		return nil, false, fmt.Errorf("unknown condition kind %q", cond.kind)
	}
}

// Settle pauses for a fixed duration after a UI-mutating action. The remote
// page exposes no "finished updating" signal, so this blunt delay is the
// backpressure mechanism; swap in a mutation-observation wait if the UI ever
// grows one.
func (w *Waiter) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
