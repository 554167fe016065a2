// internal/harvest/table.go
package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ExtractedTable is the accumulated result of a paginated read. Row width is
// deliberately not validated against the header width: the UI emits ragged
// rows and they are preserved as-is.
type ExtractedTable struct {
	Headers []string
	Rows    [][]string
}

// TableConfig locates the rendered table and its pagination control.
type TableConfig struct {
	Table    Locator
	NextPage Locator
	// MaxPages caps the pagination loop against a next-control that never
	// disables itself.
	MaxPages int
	// PageSettle is the pause after each next-page activation.
	PageSettle  time.Duration
	WaitTimeout time.Duration
}

const defaultMaxPages = 500

// TableExtractor reads a rendered table across an unknown number of pages,
// re-resolving the table fresh on every page so re-renders cannot hand it
// stale rows. Headers are read once; the header row is stable across pages.
type TableExtractor struct {
	session Session
	waiter  *Waiter
	cfg     TableConfig
	logger  *zap.Logger
}

func NewTableExtractor(session Session, waiter *Waiter, cfg TableConfig, logger *zap.Logger) *TableExtractor {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	return &TableExtractor{
		session: session,
		waiter:  waiter,
		cfg:     cfg,
		logger:  logger.Named("table"),
	}
}

// Extract accumulates rows in page-then-row document order until pagination
// is exhausted: the next control is absent, carries a disabled marker, or is
// not enabled. No deduplication, no schema validation.
func (x *TableExtractor) Extract(ctx context.Context) (*ExtractedTable, error) {
	el, err := x.waiter.Await(ctx, Present(x.cfg.Table), x.cfg.WaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("waiting for table: %w", err)
	}
	html, err := x.session.OuterHTML(ctx, el)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	headers, err := parseHeaders(html)
	if err != nil {
		return nil, err
	}

	table := &ExtractedTable{Headers: headers}
	for page := 1; ; page++ {
		if page > x.cfg.MaxPages {
			return nil, &IterationCapError{Op: "table pagination", Cap: x.cfg.MaxPages}
		}

		// Fresh resolve per page; the grid re-renders between pages.
		el, err := x.waiter.Await(ctx, Present(x.cfg.Table), x.cfg.WaitTimeout)
		if err != nil {
			return nil, fmt.Errorf("waiting for table on page %d: %w", page, err)
		}
		html, err := x.session.OuterHTML(ctx, el)
		if err != nil {
			return nil, fmt.Errorf("reading table on page %d: %w", page, err)
		}
		rows, err := parseRows(html)
		if err != nil {
			return nil, fmt.Errorf("parsing table on page %d: %w", page, err)
		}
		table.Rows = append(table.Rows, rows...)
		x.logger.Debug("Page read", zap.Int("page", page), zap.Int("rows", len(rows)))

		last, err := x.advance(ctx)
		if err != nil {
			return nil, err
		}
		if last {
			break
		}
	}

	x.logger.Info("Table extraction complete",
		zap.Int("columns", len(table.Headers)),
		zap.Int("rows", len(table.Rows)))
	return table, nil
}

// advance activates the next-page control, reporting true when this page was
// the last one.
func (x *TableExtractor) advance(ctx context.Context) (last bool, err error) {
	next, err := x.session.Find(ctx, x.cfg.NextPage)
	if errors.Is(err, ErrElementNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolving next-page control: %w", err)
	}

	// The pager marks the final page by adding "disabled" to the control's
	// class rather than removing it.
	if class, ok, err := x.session.Attribute(ctx, next, "class"); err == nil && ok &&
		strings.Contains(class, "disabled") {
		return true, nil
	}
	if enabled, err := x.session.IsEnabled(ctx, next); err != nil || !enabled {
		return true, nil
	}
	if err := x.session.Click(ctx, next); err != nil {
		// An unclickable control is the end of pagination, not a failure.
		x.logger.Debug("Next-page click rejected, assuming last page", zap.Error(err))
		return true, nil
	}
	if err := x.waiter.Settle(ctx, x.cfg.PageSettle); err != nil {
		return false, err
	}
	return false, nil
}

// parseHeaders pulls the thead cell texts, dropping empties the way the UI's
// filler columns require.
func parseHeaders(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing table HTML: %w", err)
	}
	var headers []string
	doc.Find("thead th").Each(func(_ int, cell *goquery.Selection) {
		if text := strings.TrimSpace(cell.Text()); text != "" {
			headers = append(headers, text)
		}
	})
	return headers, nil
}

// parseRows pulls the tbody rows as trimmed cell texts, preserving arity.
func parseRows(html string) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing table HTML: %w", err)
	}
	var rows [][]string
	doc.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, cells)
	})
	return rows, nil
}
