// internal/harvest/calendar.go
package harvest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// yearPattern extracts the 4-digit year from the picker header ("marzo 2025").
var yearPattern = regexp.MustCompile(`(\d{4})`)

// NavigationTarget is the date the calendar must commit. Immutable for the
// duration of a workflow run.
type NavigationTarget struct {
	Day   int
	Month string
	Year  int
}

func (t NavigationTarget) String() string {
	return fmt.Sprintf("%d-%s-%d", t.Day, t.Month, t.Year)
}

// Validate rejects targets the widget could never display.
func (t NavigationTarget) Validate() error {
	if t.Day < 1 || t.Day > 31 {
		return fmt.Errorf("day %d out of range [1,31]", t.Day)
	}
	if strings.TrimSpace(t.Month) == "" {
		return fmt.Errorf("month name is empty")
	}
	if t.Year <= 0 {
		return fmt.Errorf("year %d is not positive", t.Year)
	}
	return nil
}

// CalendarConfig locates the controls of a bootstrap-style date-picker.
type CalendarConfig struct {
	// Trigger is the input whose click opens the picker.
	Trigger Locator
	// Container identifies the dropdown that becomes visible once open.
	Container Locator
	// Header is the switch cell showing the current "month year" text.
	Header Locator
	// Prev steps one month back. Next steps one month forward; leaving it
	// empty declares forward navigation unsupported, and any target ahead of
	// the widget's position fails fast instead of looping.
	Prev Locator
	Next Locator
	// DayCellPattern is a fmt pattern with one %d verb producing the locator
	// of the day cell whose text equals the target day exactly.
	DayCellPattern string
	// MaxSteps caps the combined year and month stepping. 240 steps is 20
	// years of months, far beyond any value the widget legitimately shows.
	MaxSteps int
	// StepSettle is the pause after each prev/next activation.
	StepSettle time.Duration
}

const (
	defaultDayCellPattern = `//td[@class="day" and text()="%d"]`
	defaultMaxSteps       = 240
)

// CalendarNavigator drives the date-picker to a target date by relative
// stepping only: Closed -> Open -> YearAligned -> MonthAligned -> DayCommitted.
type CalendarNavigator struct {
	session Session
	waiter  *Waiter
	cfg     CalendarConfig
	timeout time.Duration
	logger  *zap.Logger
}

func NewCalendarNavigator(session Session, waiter *Waiter, cfg CalendarConfig, timeout time.Duration, logger *zap.Logger) *CalendarNavigator {
	if cfg.DayCellPattern == "" {
		cfg.DayCellPattern = defaultDayCellPattern
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	return &CalendarNavigator{
		session: session,
		waiter:  waiter,
		cfg:     cfg,
		timeout: timeout,
		logger:  logger.Named("calendar"),
	}
}

// SelectDate opens the picker, aligns year then month by relative stepping,
// and clicks the target day cell, which commits the date and closes the
// widget. Any wait timeout during the walk propagates as a navigation
// failure.
func (n *CalendarNavigator) SelectDate(ctx context.Context, target NavigationTarget) error {
	if err := target.Validate(); err != nil {
		return fmt.Errorf("invalid navigation target: %w", err)
	}
	n.logger.Info("Selecting date", zap.String("target", target.String()))

	// Closed -> Open.
	trigger, err := n.waiter.Await(ctx, Visible(n.cfg.Trigger), n.timeout)
	if err != nil {
		return fmt.Errorf("opening date picker: %w", err)
	}
	if err := n.session.Click(ctx, trigger); err != nil {
		return fmt.Errorf("opening date picker: %w", err)
	}
	if _, err := n.waiter.Await(ctx, Visible(n.cfg.Container), n.timeout); err != nil {
		return fmt.Errorf("date picker container never became visible: %w", err)
	}

	header, err := n.readHeader(ctx)
	if err != nil {
		return err
	}

	// Open -> YearAligned. The step budget is shared with month alignment.
	steps := 0
	for {
		current, ok := headerYear(header)
		if !ok {
			// No 4-digit year in the header; assume the widget is already
			// positioned and let month alignment take over.
			n.logger.Warn("No year found in picker header", zap.String("header", header))
			break
		}
		if current == target.Year {
			break
		}

		var control Locator
		switch {
		case current > target.Year:
			control = n.cfg.Prev
		default:
			if n.cfg.Next == "" {
				return &UnsupportedNavigationDirectionError{CurrentYear: current, TargetYear: target.Year}
			}
			control = n.cfg.Next
		}

		if err := n.step(ctx, control, &steps); err != nil {
			return err
		}
		if header, err = n.readHeader(ctx); err != nil {
			return err
		}
	}

	// YearAligned -> MonthAligned. Backward stepping only, re-reading the
	// header fresh each time so a re-rendered widget cannot go stale on us.
	want := strings.ToLower(target.Month)
	for !strings.Contains(strings.ToLower(header), want) {
		if err := n.step(ctx, n.cfg.Prev, &steps); err != nil {
			return err
		}
		if header, err = n.readHeader(ctx); err != nil {
			return err
		}
	}

	// MonthAligned -> DayCommitted.
	dayLoc := Locator(fmt.Sprintf(n.cfg.DayCellPattern, target.Day))
	day, err := n.waiter.Await(ctx, Clickable(dayLoc), n.timeout)
	if err != nil {
		return fmt.Errorf("day cell %d never became clickable: %w", target.Day, err)
	}
	if err := n.session.Click(ctx, day); err != nil {
		return fmt.Errorf("committing day %d: %w", target.Day, err)
	}

	n.logger.Info("Date committed", zap.String("target", target.String()), zap.Int("steps", steps))
	return nil
}

// step activates a prev/next control once, charging the shared step budget.
func (n *CalendarNavigator) step(ctx context.Context, control Locator, steps *int) error {
	if *steps >= n.cfg.MaxSteps {
		return &IterationCapError{Op: "calendar navigation", Cap: n.cfg.MaxSteps}
	}
	*steps++

	el, err := n.waiter.Await(ctx, Clickable(control), n.timeout)
	if err != nil {
		return fmt.Errorf("calendar step control: %w", err)
	}
	if err := n.session.Click(ctx, el); err != nil {
		return fmt.Errorf("calendar step: %w", err)
	}
	return n.waiter.Settle(ctx, n.cfg.StepSettle)
}

// readHeader re-resolves the header element and returns its current text.
func (n *CalendarNavigator) readHeader(ctx context.Context) (string, error) {
	el, err := n.waiter.Await(ctx, Visible(n.cfg.Header), n.timeout)
	if err != nil {
		return "", fmt.Errorf("reading picker header: %w", err)
	}
	text, err := n.session.Text(ctx, el)
	if err != nil {
		return "", fmt.Errorf("reading picker header: %w", err)
	}
	return text, nil
}

func headerYear(header string) (int, bool) {
	m := yearPattern.FindString(header)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return year, true
}
