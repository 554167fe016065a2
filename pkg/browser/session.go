// pkg/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strconv"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pvmonitor/harvest-cli/internal/harvest"
)

// ensure Session satisfies the core's collaborator contract
var _ harvest.Session = (*Session)(nil)

// Session is a chromedp-backed implementation of harvest.Session over a
// single browser tab. Locators are XPath expressions; every operation
// re-queries the DOM by the handle's locator, so a page re-render between
// calls cannot hand back a stale node.
type Session struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	limiter *rate.Limiter
}

// element is the opaque handle: it remembers how the node was found, not the
// node itself.
type element struct {
	loc harvest.Locator
}

func (e *element) Describe() string { return string(e.loc) }

// NewSession opens a tab under the manager's browser process. When a download
// directory is configured, downloads are routed into it so the finalization
// poller knows where to look.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	sessionCtx, cancel := chromedp.NewContext(m.allocatorCtx)

	id := uuid.New().String()
	s := &Session{
		id:     id,
		ctx:    sessionCtx,
		cancel: cancel,
		logger: m.logger.Named("session").With(zap.String("session_id", id[:8])),
	}

	gap := m.cfg.MinActionGap
	if gap > 0 {
		s.limiter = rate.NewLimiter(rate.Every(gap), 1)
	}

	if m.cfg.DownloadDir != "" {
		err := s.run(ctx, cdpbrowser.
			SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(m.cfg.DownloadDir))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("configuring download directory: %w", err)
		}
	}

	s.logger.Info("Browser session initialized.")
	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Close releases the tab. The manager's browser process stays up.
func (s *Session) Close() {
	s.cancel()
}

// run executes chromedp actions on the session tab while honoring the
// caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// pace enforces the configured minimum gap between UI-mutating actions.
func (s *Session) pace(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	s.logger.Info("Navigating", zap.String("url", url))
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Find resolves the locator without waiting. AtLeast(0) keeps the query
// non-blocking; the polling Waiter owns all waiting.
func (s *Session) Find(ctx context.Context, loc harvest.Locator) (harvest.Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(string(loc), &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", loc, err)
	}
	if len(nodes) == 0 {
		return nil, harvest.ErrElementNotFound
	}
	return &element{loc: loc}, nil
}

func (s *Session) Click(ctx context.Context, el harvest.Element) error {
	loc, err := locatorOf(el)
	if err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	return s.run(ctx, chromedp.Click(string(loc), chromedp.BySearch))
}

func (s *Session) Text(ctx context.Context, el harvest.Element) (string, error) {
	loc, err := locatorOf(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := s.run(ctx, chromedp.Text(string(loc), &text, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("reading text of %s: %w", loc, err)
	}
	return text, nil
}

// SelectByVisibleText picks the option whose trimmed label equals the given
// text exactly and fires the change event the page listens for.
func (s *Session) SelectByVisibleText(ctx context.Context, el harvest.Element, label string) error {
	loc, err := locatorOf(el)
	if err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}

	script := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el || !el.options) return false;
		for (const opt of el.options) {
			if (opt.textContent.trim() === %s) {
				el.value = opt.value;
				el.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, xpathLookup(loc), strconv.Quote(label))

	var matched bool
	if err := s.run(ctx, chromedp.Evaluate(script, &matched)); err != nil {
		return fmt.Errorf("selecting option in %s: %w", loc, err)
	}
	if !matched {
		return fmt.Errorf("no option with visible text %q in %s", label, loc)
	}
	return nil
}

func (s *Session) IsEnabled(ctx context.Context, el harvest.Element) (bool, error) {
	return s.evalBool(ctx, el, `el ? !el.disabled : false`)
}

func (s *Session) IsSelected(ctx context.Context, el harvest.Element) (bool, error) {
	return s.evalBool(ctx, el, `el ? !!(el.checked || el.selected) : false`)
}

func (s *Session) IsVisible(ctx context.Context, el harvest.Element) (bool, error) {
	return s.evalBool(ctx, el, `(() => {
		if (!el) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})()`)
}

func (s *Session) Attribute(ctx context.Context, el harvest.Element, name string) (string, bool, error) {
	loc, err := locatorOf(el)
	if err != nil {
		return "", false, err
	}
	var value string
	var ok bool
	if err := s.run(ctx, chromedp.AttributeValue(string(loc), name, &value, &ok, chromedp.BySearch)); err != nil {
		return "", false, fmt.Errorf("reading attribute %q of %s: %w", name, loc, err)
	}
	return value, ok, nil
}

func (s *Session) OuterHTML(ctx context.Context, el harvest.Element) (string, error) {
	loc, err := locatorOf(el)
	if err != nil {
		return "", err
	}
	var html string
	if err := s.run(ctx, chromedp.OuterHTML(string(loc), &html, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("reading HTML of %s: %w", loc, err)
	}
	return html, nil
}

// evalBool evaluates a boolean expression over `el`, the element the handle's
// XPath resolves to right now.
func (s *Session) evalBool(ctx context.Context, el harvest.Element, expr string) (bool, error) {
	loc, err := locatorOf(el)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf(`(() => { const el = %s; return %s; })()`, xpathLookup(loc), expr)
	var result bool
	if err := s.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return false, fmt.Errorf("inspecting %s: %w", loc, err)
	}
	return result, nil
}

// xpathLookup renders a JS expression resolving the locator to a node.
func xpathLookup(loc harvest.Locator) string {
	return fmt.Sprintf(
		`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`,
		strconv.Quote(string(loc)))
}

func locatorOf(el harvest.Element) (harvest.Locator, error) {
	handle, ok := el.(*element)
	if !ok {
		return "", fmt.Errorf("element %q does not belong to this session", el.Describe())
	}
	return handle.loc, nil
}
