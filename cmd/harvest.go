// -- cmd/harvest.go --
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pvmonitor/harvest-cli/internal/export"
	"github.com/pvmonitor/harvest-cli/internal/harvest"
	"github.com/pvmonitor/harvest-cli/internal/locators"
	"github.com/pvmonitor/harvest-cli/internal/observability"
	"github.com/pvmonitor/harvest-cli/pkg/browser"
)

var (
	flagDay      int
	flagMonth    string
	flagYear     int
	flagCategory string
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run one acquisition: select the date and category, extract the table, persist it.",
	RunE:  runHarvest,
}

func init() {
	harvestCmd.Flags().IntVar(&flagDay, "day", 0, "day of month to harvest (overrides config)")
	harvestCmd.Flags().StringVar(&flagMonth, "month", "", "month name as the picker shows it (overrides config)")
	harvestCmd.Flags().IntVar(&flagYear, "year", 0, "year to harvest (overrides config)")
	harvestCmd.Flags().StringVar(&flagCategory, "category", "", "category key to select (overrides config)")
	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()
	ctx := cmd.Context()

	applyFlagOverrides(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	catalog, err := locators.Load(cfg.Locators.File)
	if err != nil {
		return err
	}

	manager, err := browser.NewManager(ctx, cfg.Browser, logger)
	if err != nil {
		return err
	}
	defer manager.Shutdown()

	session, err := manager.NewSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	waiter := harvest.NewWaiter(session, cfg.Timing.PollInterval)
	target := harvest.NavigationTarget{
		Day:   cfg.Harvest.Day,
		Month: cfg.Harvest.Month,
		Year:  cfg.Harvest.Year,
	}

	workflow := harvest.NewWorkflow(session, waiter, catalog, harvest.WorkflowConfig{
		URL:            cfg.Harvest.URL,
		DailyView:      harvest.Locator(cfg.Page.DailyView),
		CategorySelect: harvest.Locator(cfg.Page.CategorySelect),
		Proceed:        harvest.Locator(cfg.Page.Proceed),
		Confirm:        harvest.Locator(cfg.Page.Confirm),
		Table:          harvest.Locator(cfg.Page.Table),
		NextPage:       harvest.Locator(cfg.Page.NextPage),
		Calendar: harvest.CalendarConfig{
			Trigger:        harvest.Locator(cfg.Calendar.Trigger),
			Container:      harvest.Locator(cfg.Calendar.Container),
			Header:         harvest.Locator(cfg.Calendar.Header),
			Prev:           harvest.Locator(cfg.Calendar.Prev),
			Next:           harvest.Locator(cfg.Calendar.Next),
			DayCellPattern: cfg.Calendar.DayCellPattern,
			MaxSteps:       cfg.Calendar.MaxSteps,
			StepSettle:     cfg.Timing.StepSettle,
		},
		Target: target,
		Request: harvest.SelectionRequest{
			Category:   cfg.Harvest.Category,
			Elements:   cfg.Harvest.Elements,
			Parameters: cfg.Harvest.Parameters,
		},
		WaitTimeout:    cfg.Timing.WaitTimeout,
		SettleDelay:    cfg.Timing.SettleDelay,
		ToggleSettle:   cfg.Timing.ToggleSettle,
		ConfirmTimeout: cfg.Timing.ConfirmTimeout,
		MaxPages:       cfg.Timing.MaxPages,
		PageSettle:     cfg.Timing.PageSettle,
	}, logger)

	table, err := workflow.Run(ctx)
	if err != nil {
		return err
	}

	sink := export.NewCSVSink(cfg.Output.Directory, logger)
	if err := sink.Write(table, outputFilename(target)); err != nil {
		return err
	}

	if cfg.Download.Enabled {
		downloader := harvest.NewDownloader(session, waiter, harvest.OSFilesystem{}, harvest.DownloadConfig{
			TableCheck:      harvest.Locator(cfg.Download.TableCheck),
			Trigger:         harvest.Locator(cfg.Download.Trigger),
			Filename:        cfg.Download.Filename,
			RenamePattern:   cfg.Download.RenamePattern,
			Directory:       cfg.Browser.DownloadDir,
			WaitTimeout:     cfg.Timing.WaitTimeout,
			PollInterval:    cfg.Download.PollInterval,
			DownloadTimeout: cfg.Download.Timeout,
		}, logger)

		artifact, err := downloader.Run(ctx, &target)
		if err != nil {
			return err
		}
		logger.Info("Export file saved", zap.String("path", artifact.DestinationPath))
	}

	return nil
}

func applyFlagOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("day") {
		cfg.Harvest.Day = flagDay
	}
	if cmd.Flags().Changed("month") {
		cfg.Harvest.Month = flagMonth
	}
	if cmd.Flags().Changed("year") {
		cfg.Harvest.Year = flagYear
	}
	if cmd.Flags().Changed("category") {
		cfg.Harvest.Category = flagCategory
	}
}

// outputFilename expands the configured pattern; category spaces become
// underscores so the name stays shell-friendly.
func outputFilename(target harvest.NavigationTarget) string {
	category := strings.ReplaceAll(cfg.Harvest.Category, " ", "_")
	name := strings.NewReplacer(
		"{category}", category,
		"{day}", strconv.Itoa(target.Day),
		"{month}", target.Month,
		"{year}", strconv.Itoa(target.Year),
	).Replace(cfg.Output.FilenamePattern)
	if name == "" {
		name = fmt.Sprintf("Data_%s_%d_%s_%d.csv", category, target.Day, target.Month, target.Year)
	}
	return name
}
