// internal/harvest/selection.go
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State names the positions of the selection workflow.
type State string

const (
	StateIdle              State = "Idle"
	StateDailyViewSelected State = "DailyViewSelected"
	StateDateSet           State = "DateSet"
	StateCategorySelected  State = "CategorySelected"
	StateElementsToggled   State = "ElementsToggled"
	StateParametersToggled State = "ParametersToggled"
	StateConfirmed         State = "Confirmed"
	StateTableRequested    State = "TableRequested"
	StateFinalizing        State = "Finalizing"
	StateDone              State = "Done"
	StateFailed            State = "Failed"
)

// SelectionRequest names what to harvest: a category key and the element and
// parameter labels to toggle under it. Names that resolve to no locator are
// skipped with a warning, never aborting the run.
type SelectionRequest struct {
	Category   string
	Elements   []string
	Parameters []string
}

// WorkflowConfig carries the page entry point, the fixed control locators and
// the pacing knobs for one acquisition run.
type WorkflowConfig struct {
	URL            string
	DailyView      Locator
	CategorySelect Locator
	// Proceed requests the result view once the selection is complete.
	Proceed Locator
	// Confirm is a best-effort trailing acknowledgement; its absence is
	// swallowed, not an error.
	Confirm  Locator
	Table    Locator
	NextPage Locator

	Calendar CalendarConfig
	Target   NavigationTarget
	Request  SelectionRequest

	// WaitTimeout bounds every render-ready wait in the run.
	WaitTimeout time.Duration
	// SettleDelay follows the date commit, the category selection and the
	// proceed click, standing in for a missing "refreshed" signal.
	SettleDelay time.Duration
	// ToggleSettle follows each element/parameter toggle.
	ToggleSettle time.Duration
	// ConfirmTimeout bounds the wait for the optional trailing confirmation.
	ConfirmTimeout time.Duration
	// MaxPages caps table pagination.
	MaxPages int
	// PageSettle follows each next-page activation.
	PageSettle time.Duration
}

// Workflow is the ordered acquisition state machine. One instance owns one
// run; it executes sequentially, each step blocking until its wait condition
// holds, and fails loudly on the first non-soft error with no retry.
type Workflow struct {
	session  Session
	waiter   *Waiter
	resolver LocatorResolver
	calendar *CalendarNavigator
	cfg      WorkflowConfig
	logger   *zap.Logger

	runID string
	state State
}

// NewWorkflow wires a workflow run over an already-live session. The caller
// keeps ownership of the session and releases it on every exit path.
func NewWorkflow(session Session, waiter *Waiter, resolver LocatorResolver, cfg WorkflowConfig, logger *zap.Logger) *Workflow {
	runID := uuid.New().String()
	l := logger.Named("workflow").With(zap.String("run_id", runID[:8]))
	return &Workflow{
		session:  session,
		waiter:   waiter,
		resolver: resolver,
		calendar: NewCalendarNavigator(session, waiter, cfg.Calendar, cfg.WaitTimeout, l),
		cfg:      cfg,
		logger:   l,
		runID:    runID,
		state:    StateIdle,
	}
}

// RunID identifies this workflow run in logs and artifact metadata.
func (wf *Workflow) RunID() string { return wf.runID }

// State reports the machine's current position.
func (wf *Workflow) State() State { return wf.state }

// Run executes the full selection sequence and returns the extracted table.
// On failure the machine lands in StateFailed and the error names the step
// that broke.
func (wf *Workflow) Run(ctx context.Context) (*ExtractedTable, error) {
	wf.logger.Info("Starting acquisition run",
		zap.String("url", wf.cfg.URL),
		zap.String("category", wf.cfg.Request.Category),
		zap.String("target", wf.cfg.Target.String()))

	if err := wf.selectDailyView(ctx); err != nil {
		return nil, wf.fail("select daily view", err)
	}
	wf.to(StateDailyViewSelected)

	if err := wf.setDate(ctx); err != nil {
		return nil, wf.fail("set date", err)
	}
	wf.to(StateDateSet)

	if err := wf.selectCategory(ctx); err != nil {
		return nil, wf.fail("select category", err)
	}
	wf.to(StateCategorySelected)

	if err := wf.toggleAll(ctx, KindElements, wf.cfg.Request.Elements); err != nil {
		return nil, wf.fail("toggle elements", err)
	}
	wf.to(StateElementsToggled)

	if err := wf.toggleAll(ctx, KindParameters, wf.cfg.Request.Parameters); err != nil {
		return nil, wf.fail("toggle parameters", err)
	}
	wf.to(StateParametersToggled)

	if err := wf.proceed(ctx); err != nil {
		return nil, wf.fail("proceed", err)
	}
	wf.to(StateConfirmed)

	wf.to(StateTableRequested)
	extractor := NewTableExtractor(wf.session, wf.waiter, TableConfig{
		Table:       wf.cfg.Table,
		NextPage:    wf.cfg.NextPage,
		MaxPages:    wf.cfg.MaxPages,
		PageSettle:  wf.cfg.PageSettle,
		WaitTimeout: wf.cfg.WaitTimeout,
	}, wf.logger)
	table, err := extractor.Extract(ctx)
	if err != nil {
		return nil, wf.fail("extract table", err)
	}

	wf.to(StateFinalizing)
	wf.confirmIfPresent(ctx)

	wf.to(StateDone)
	wf.logger.Info("Acquisition run completed", zap.Int("rows", len(table.Rows)))
	return table, nil
}

func (wf *Workflow) to(next State) {
	wf.logger.Debug("State transition", zap.String("from", string(wf.state)), zap.String("to", string(next)))
	wf.state = next
}

func (wf *Workflow) fail(step string, err error) error {
	wf.logger.Error("Acquisition run failed",
		zap.String("step", step),
		zap.String("state", string(wf.state)),
		zap.Error(err))
	wf.state = StateFailed
	return fmt.Errorf("step %q: %w", step, err)
}

func (wf *Workflow) selectDailyView(ctx context.Context) error {
	if err := wf.session.Navigate(ctx, wf.cfg.URL); err != nil {
		return fmt.Errorf("navigating to %s: %w", wf.cfg.URL, err)
	}
	el, err := wf.waiter.Await(ctx, Clickable(wf.cfg.DailyView), wf.cfg.WaitTimeout)
	if err != nil {
		return err
	}
	return wf.checkedClick(ctx, el)
}

func (wf *Workflow) setDate(ctx context.Context) error {
	if err := wf.calendar.SelectDate(ctx, wf.cfg.Target); err != nil {
		return err
	}
	// The dependent controls repopulate for the new date with no observable
	// completion signal.
	return wf.waiter.Settle(ctx, wf.cfg.SettleDelay)
}

func (wf *Workflow) selectCategory(ctx context.Context) error {
	el, err := wf.waiter.Await(ctx, Present(wf.cfg.CategorySelect), wf.cfg.WaitTimeout)
	if err != nil {
		return err
	}
	if err := wf.session.SelectByVisibleText(ctx, el, wf.cfg.Request.Category); err != nil {
		return &SelectionMismatchError{Category: wf.cfg.Request.Category, Err: err}
	}
	return wf.waiter.Settle(ctx, wf.cfg.SettleDelay)
}

// toggleAll resolves and toggles each configured name. Resolution failures
// are soft: logged, skipped, and the rest of the batch still runs.
func (wf *Workflow) toggleAll(ctx context.Context, kind LocatorKind, names []string) error {
	for _, name := range names {
		loc, ok := wf.resolver.Resolve(wf.cfg.Request.Category, kind, name)
		if !ok {
			wf.logger.Warn("No locator for name, skipping",
				zap.String("kind", string(kind)),
				zap.String("name", name),
				zap.String("category", wf.cfg.Request.Category))
			continue
		}
		el, err := wf.waiter.Await(ctx, Present(loc), wf.cfg.WaitTimeout)
		if err != nil {
			return fmt.Errorf("toggling %q: %w", name, err)
		}
		if err := wf.checkedClick(ctx, el); err != nil {
			return fmt.Errorf("toggling %q: %w", name, err)
		}
		if err := wf.waiter.Settle(ctx, wf.cfg.ToggleSettle); err != nil {
			return err
		}
	}
	return nil
}

func (wf *Workflow) proceed(ctx context.Context) error {
	el, err := wf.waiter.Await(ctx, Clickable(wf.cfg.Proceed), wf.cfg.WaitTimeout)
	if err != nil {
		return err
	}
	if err := wf.checkedClick(ctx, el); err != nil {
		return err
	}
	return wf.waiter.Settle(ctx, wf.cfg.SettleDelay)
}

// confirmIfPresent wait-clicks the trailing confirmation control if the page
// shows one. Its absence is normal on some result views.
func (wf *Workflow) confirmIfPresent(ctx context.Context) {
	if wf.cfg.Confirm == "" {
		return
	}
	el, err := wf.waiter.Await(ctx, Clickable(wf.cfg.Confirm), wf.cfg.ConfirmTimeout)
	if err != nil {
		var timeout *WaitTimeoutError
		if errors.As(err, &timeout) {
			wf.logger.Info("No trailing confirmation control, skipping")
			return
		}
		wf.logger.Warn("Trailing confirmation wait failed, skipping", zap.Error(err))
		return
	}
	if err := wf.checkedClick(ctx, el); err != nil {
		wf.logger.Warn("Trailing confirmation click failed, skipping", zap.Error(err))
	}
}

// checkedClick is an idempotent toggle: a control that already reports itself
// active is left alone, since a second click would deactivate it.
func (wf *Workflow) checkedClick(ctx context.Context, el Element) error {
	selected, err := wf.session.IsSelected(ctx, el)
	if err == nil && selected {
		wf.logger.Debug("Control already active, not clicking", zap.String("element", el.Describe()))
		return nil
	}
	return wf.session.Click(ctx, el)
}
