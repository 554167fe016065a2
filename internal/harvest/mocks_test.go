// internal/harvest/mocks_test.go
package harvest

import (
	"context"
	"fmt"
	"io"
)

// fakeElement is the handle type the fake session hands out.
type fakeElement struct {
	loc Locator
}

func (e *fakeElement) Describe() string { return string(e.loc) }

// fakeNode scripts one element's observable behavior.
type fakeNode struct {
	// appearAfter makes Find fail this many times before succeeding,
	// simulating an element that renders asynchronously.
	appearAfter int
	finds       int

	invisible bool
	disabled  bool
	selected  bool

	text    string
	textFn  func() string
	html    string
	htmlFn  func() string
	attrs   map[string]string
	options []string
}

// fakeSession is a scripted Session. Tests register nodes per locator and
// optional click hooks that mutate the scripted page, mimicking the remote
// UI reacting to input.
type fakeSession struct {
	nodes     map[Locator]*fakeNode
	onClick   map[Locator]func()
	clicks    []Locator
	selected  map[Locator]string
	navigated []string
}

var _ Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{
		nodes:    make(map[Locator]*fakeNode),
		onClick:  make(map[Locator]func()),
		selected: make(map[Locator]string),
	}
}

func (f *fakeSession) add(loc Locator, n *fakeNode) *fakeNode {
	if n == nil {
		n = &fakeNode{}
	}
	f.nodes[loc] = n
	return n
}

func (f *fakeSession) clickCount(loc Locator) int {
	count := 0
	for _, c := range f.clicks {
		if c == loc {
			count++
		}
	}
	return count
}

func (f *fakeSession) node(el Element) (*fakeNode, Locator, error) {
	handle, ok := el.(*fakeElement)
	if !ok {
		return nil, "", fmt.Errorf("foreign element %q", el.Describe())
	}
	n, ok := f.nodes[handle.loc]
	if !ok {
		return nil, "", ErrElementNotFound
	}
	return n, handle.loc, nil
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSession) Find(_ context.Context, loc Locator) (Element, error) {
	n, ok := f.nodes[loc]
	if !ok {
		return nil, ErrElementNotFound
	}
	n.finds++
	if n.finds <= n.appearAfter {
		return nil, ErrElementNotFound
	}
	return &fakeElement{loc: loc}, nil
}

func (f *fakeSession) Click(_ context.Context, el Element) error {
	_, loc, err := f.node(el)
	if err != nil {
		return err
	}
	f.clicks = append(f.clicks, loc)
	if hook, ok := f.onClick[loc]; ok {
		hook()
	}
	return nil
}

func (f *fakeSession) Text(_ context.Context, el Element) (string, error) {
	n, _, err := f.node(el)
	if err != nil {
		return "", err
	}
	if n.textFn != nil {
		return n.textFn(), nil
	}
	return n.text, nil
}

func (f *fakeSession) SelectByVisibleText(_ context.Context, el Element, label string) error {
	n, loc, err := f.node(el)
	if err != nil {
		return err
	}
	for _, opt := range n.options {
		if opt == label {
			f.selected[loc] = label
			return nil
		}
	}
	return fmt.Errorf("no option with visible text %q", label)
}

func (f *fakeSession) IsEnabled(_ context.Context, el Element) (bool, error) {
	n, _, err := f.node(el)
	if err != nil {
		return false, err
	}
	return !n.disabled, nil
}

func (f *fakeSession) IsSelected(_ context.Context, el Element) (bool, error) {
	n, _, err := f.node(el)
	if err != nil {
		return false, err
	}
	return n.selected, nil
}

func (f *fakeSession) IsVisible(_ context.Context, el Element) (bool, error) {
	n, _, err := f.node(el)
	if err != nil {
		return false, err
	}
	return !n.invisible, nil
}

func (f *fakeSession) Attribute(_ context.Context, el Element, name string) (string, bool, error) {
	n, _, err := f.node(el)
	if err != nil {
		return "", false, err
	}
	v, ok := n.attrs[name]
	return v, ok, nil
}

func (f *fakeSession) OuterHTML(_ context.Context, el Element) (string, error) {
	n, _, err := f.node(el)
	if err != nil {
		return "", err
	}
	if n.htmlFn != nil {
		return n.htmlFn(), nil
	}
	return n.html, nil
}

// fakeResolver is a scripted LocatorResolver.
type fakeResolver struct {
	table map[string]map[LocatorKind]map[string]Locator
}

var _ LocatorResolver = (*fakeResolver)(nil)

func newFakeResolver() *fakeResolver {
	return &fakeResolver{table: make(map[string]map[LocatorKind]map[string]Locator)}
}

func (r *fakeResolver) put(category string, kind LocatorKind, name string, loc Locator) {
	if r.table[category] == nil {
		r.table[category] = make(map[LocatorKind]map[string]Locator)
	}
	if r.table[category][kind] == nil {
		r.table[category][kind] = make(map[string]Locator)
	}
	r.table[category][kind][name] = loc
}

func (r *fakeResolver) Resolve(category string, kind LocatorKind, name string) (Locator, bool) {
	loc, ok := r.table[category][kind][name]
	return loc, ok
}

// fakeFS scripts the download directory.
type fakeFS struct {
	files map[string]bool
	// lockedPolls is how many OpenAppend probes fail before the writer
	// releases the file.
	lockedPolls int
	probes      int
	// appearAfterPolls delays Exists turning true.
	appearAfterPolls int
	existsCalls      int
	renameErr        error
}

var _ Filesystem = (*fakeFS)(nil)

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string]bool)}
}

func (f *fakeFS) Exists(path string) bool {
	if f.files[path] {
		return true
	}
	if f.appearAfterPolls > 0 {
		f.existsCalls++
		if f.existsCalls > f.appearAfterPolls {
			f.files[path] = true
			return true
		}
	}
	return false
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (f *fakeFS) OpenAppend(path string) (io.Closer, error) {
	if !f.files[path] {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	f.probes++
	if f.probes <= f.lockedPolls {
		return nil, fmt.Errorf("open %s: permission denied", path)
	}
	return nopCloser{}, nil
}

func (f *fakeFS) Rename(oldPath, newPath string) error {
	if f.renameErr != nil {
		return f.renameErr
	}
	if !f.files[oldPath] {
		return fmt.Errorf("rename %s: no such file", oldPath)
	}
	if f.files[newPath] {
		return fmt.Errorf("rename %s: destination exists", newPath)
	}
	delete(f.files, oldPath)
	f.files[newPath] = true
	return nil
}
