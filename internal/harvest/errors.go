// internal/harvest/errors.go
package harvest

import (
	"errors"
	"fmt"
	"time"
)

// ErrElementNotFound is the sentinel a Session returns from Find when no
// element matches the locator. Callers decide whether absence is fatal or a
// normal signal (e.g. "no more pages").
var ErrElementNotFound = errors.New("element not found")

// WaitTimeoutError reports that a render-ready condition never became true
// within its timeout.
type WaitTimeoutError struct {
	Condition string
	Timeout   time.Duration
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("condition %s not satisfied within %s", e.Condition, e.Timeout)
}

// UnsupportedNavigationDirectionError reports that the calendar must move
// forward in time but no forward control is configured. Stepping backward
// toward a future date cannot terminate, so the run fails instead.
type UnsupportedNavigationDirectionError struct {
	CurrentYear int
	TargetYear  int
}

func (e *UnsupportedNavigationDirectionError) Error() string {
	return fmt.Sprintf("calendar must advance from %d to %d but no forward control is configured",
		e.CurrentYear, e.TargetYear)
}

// SelectionMismatchError reports that the configured category label matched
// no option exactly.
type SelectionMismatchError struct {
	Category string
	Err      error
}

func (e *SelectionMismatchError) Error() string {
	return fmt.Sprintf("category %q not selectable: %v", e.Category, e.Err)
}

func (e *SelectionMismatchError) Unwrap() error { return e.Err }

// IterationCapError reports that a relative-navigation or pagination loop hit
// its step cap. The remote UI has no terminating guarantee of its own, so the
// cap is what stands between a misbehaving control and an infinite loop.
type IterationCapError struct {
	Op  string
	Cap int
}

func (e *IterationCapError) Error() string {
	return fmt.Sprintf("%s exceeded %d steps without reaching its goal", e.Op, e.Cap)
}

// DownloadNotFoundError reports that the expected artifact never appeared on
// disk, as distinct from appearing but staying write-locked.
type DownloadNotFoundError struct {
	Path    string
	Timeout time.Duration
}

func (e *DownloadNotFoundError) Error() string {
	return fmt.Sprintf("downloaded file %s did not appear within %s", e.Path, e.Timeout)
}

// FinalizationError reports a failed rename of a completed download.
type FinalizationError struct {
	Source      string
	Destination string
	Err         error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("finalizing %s -> %s: %v", e.Source, e.Destination, e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }
