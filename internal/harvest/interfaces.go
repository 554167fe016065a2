// internal/harvest/interfaces.go
package harvest

import (
	"context"
	"io"
)

// Locator is an opaque reference (an XPath expression in the current
// deployment) that the automation session uses to find a UI element.
type Locator string

// LocatorKind discriminates the two lookup tables a category carries.
type LocatorKind string

const (
	KindElements   LocatorKind = "Elements"
	KindParameters LocatorKind = "Parameters"
)

// Element is an opaque handle to a located UI element. Handles may go stale
// when the page re-renders; callers that loop re-resolve instead of caching.
type Element interface {
	// Describe identifies the element for logs and error messages.
	Describe() string
}

// Session is the automation session collaborator. The core never constructs
// one and never owns its teardown; the caller hands in a live session and
// guarantees release on all exit paths.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Find resolves a locator to an element handle without waiting. It
	// returns ErrElementNotFound when nothing matches.
	Find(ctx context.Context, loc Locator) (Element, error)
	Click(ctx context.Context, el Element) error
	Text(ctx context.Context, el Element) (string, error)
	// SelectByVisibleText picks the option whose visible label equals the
	// given text exactly. A missing option is an error.
	SelectByVisibleText(ctx context.Context, el Element, label string) error
	IsEnabled(ctx context.Context, el Element) (bool, error)
	IsSelected(ctx context.Context, el Element) (bool, error)
	IsVisible(ctx context.Context, el Element) (bool, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, el Element, name string) (string, bool, error)
	OuterHTML(ctx context.Context, el Element) (string, error)
}

// LocatorResolver maps a (category, kind, name) triple to a locator. A failed
// lookup is a soft, per-item condition: the caller logs and skips.
type LocatorResolver interface {
	Resolve(category string, kind LocatorKind, name string) (Locator, bool)
}

// TableSink persists an extracted table. Format and naming scheme are its
// concern, not the core's.
type TableSink interface {
	Write(table *ExtractedTable, filename string) error
}

// Filesystem is the narrow slice of the OS filesystem the download
// finalization needs. OpenAppend doubles as a write-lock probe: a permission
// failure means an external process is still writing the file.
type Filesystem interface {
	Exists(path string) bool
	OpenAppend(path string) (io.Closer, error)
	Rename(oldPath, newPath string) error
}
