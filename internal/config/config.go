// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Harvest  HarvestConfig  `mapstructure:"harvest" yaml:"harvest"`
	Page     PageConfig     `mapstructure:"page" yaml:"page"`
	Calendar CalendarConfig `mapstructure:"calendar" yaml:"calendar"`
	Timing   TimingConfig   `mapstructure:"timing" yaml:"timing"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Locators LocatorsConfig `mapstructure:"locators" yaml:"locators"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the headless browser process and session pacing.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	DownloadDir     string        `mapstructure:"download_dir" yaml:"download_dir"`
	MinActionGap    time.Duration `mapstructure:"min_action_gap" yaml:"min_action_gap"`
}

// HarvestConfig names the acquisition target: the page, the date and the
// category/element/parameter selection.
type HarvestConfig struct {
	URL        string   `mapstructure:"url" yaml:"url"`
	Day        int      `mapstructure:"day" yaml:"day"`
	Month      string   `mapstructure:"month" yaml:"month"`
	Year       int      `mapstructure:"year" yaml:"year"`
	Category   string   `mapstructure:"category" yaml:"category"`
	Elements   []string `mapstructure:"elements" yaml:"elements"`
	Parameters []string `mapstructure:"parameters" yaml:"parameters"`
}

// PageConfig carries the fixed control locators of the analysis page.
type PageConfig struct {
	DailyView      string `mapstructure:"daily_view" yaml:"daily_view"`
	CategorySelect string `mapstructure:"category_select" yaml:"category_select"`
	Proceed        string `mapstructure:"proceed" yaml:"proceed"`
	Confirm        string `mapstructure:"confirm" yaml:"confirm"`
	Table          string `mapstructure:"table" yaml:"table"`
	NextPage       string `mapstructure:"next_page" yaml:"next_page"`
}

// CalendarConfig locates the date-picker controls.
type CalendarConfig struct {
	Trigger        string `mapstructure:"trigger" yaml:"trigger"`
	Container      string `mapstructure:"container" yaml:"container"`
	Header         string `mapstructure:"header" yaml:"header"`
	Prev           string `mapstructure:"prev" yaml:"prev"`
	Next           string `mapstructure:"next" yaml:"next"`
	DayCellPattern string `mapstructure:"day_cell_pattern" yaml:"day_cell_pattern"`
	MaxSteps       int    `mapstructure:"max_steps" yaml:"max_steps"`
}

// TimingConfig bounds the waits and settles of one run.
type TimingConfig struct {
	WaitTimeout    time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ToggleSettle   time.Duration `mapstructure:"toggle_settle" yaml:"toggle_settle"`
	PageSettle     time.Duration `mapstructure:"page_settle" yaml:"page_settle"`
	StepSettle     time.Duration `mapstructure:"step_settle" yaml:"step_settle"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	MaxPages       int           `mapstructure:"max_pages" yaml:"max_pages"`
}

// DownloadConfig controls the optional file-download acquisition path.
type DownloadConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	TableCheck    string        `mapstructure:"table_check" yaml:"table_check"`
	Trigger       string        `mapstructure:"trigger" yaml:"trigger"`
	Filename      string        `mapstructure:"filename" yaml:"filename"`
	RenamePattern string        `mapstructure:"rename_pattern" yaml:"rename_pattern"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// OutputConfig controls where and under what name extracted tables land.
type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	// FilenamePattern supports {category}, {day}, {month} and {year}.
	FilenamePattern string `mapstructure:"filename_pattern" yaml:"filename_pattern"`
}

// LocatorsConfig points at the locator catalog file.
type LocatorsConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// Load reads the config file (if any), applies HARVEST_* environment
// overrides and defaults, and validates the result.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "harvest-cli")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.min_action_gap", "300ms")

	v.SetDefault("calendar.trigger", `//input[@class="form-control form-control-sm"]`)
	v.SetDefault("calendar.container", `//div[contains(@class,"datepicker-dropdown")]`)
	v.SetDefault("calendar.header", `//th[@class="datepicker-switch"]`)
	v.SetDefault("calendar.prev", `//th[@class="prev"]`)
	v.SetDefault("calendar.day_cell_pattern", `//td[@class="day" and text()="%d"]`)
	v.SetDefault("calendar.max_steps", 240)

	v.SetDefault("page.table", `//table[contains(@class, "table")]`)

	v.SetDefault("timing.wait_timeout", "10s")
	v.SetDefault("timing.poll_interval", "250ms")
	v.SetDefault("timing.settle_delay", "2s")
	v.SetDefault("timing.toggle_settle", "500ms")
	v.SetDefault("timing.page_settle", "1s")
	v.SetDefault("timing.step_settle", "500ms")
	v.SetDefault("timing.confirm_timeout", "5s")
	v.SetDefault("timing.max_pages", 500)

	v.SetDefault("download.enabled", false)
	v.SetDefault("download.filename", "QuickAnalysis.xlsx")
	v.SetDefault("download.rename_pattern", "QuickAnalysis_{day}_{month}_{year}.xlsx")
	v.SetDefault("download.poll_interval", "1s")
	v.SetDefault("download.timeout", "60s")

	v.SetDefault("output.directory", "data")
	v.SetDefault("output.filename_pattern", "Data_{category}_{day}_{month}_{year}.csv")

	v.SetDefault("locators.file", "locators.yaml")
}

// Validate rejects configurations no run could complete with.
func (c *Config) Validate() error {
	if c.Harvest.URL == "" {
		return fmt.Errorf("harvest.url is required")
	}
	if c.Harvest.Day < 1 || c.Harvest.Day > 31 {
		return fmt.Errorf("harvest.day %d out of range [1,31]", c.Harvest.Day)
	}
	if strings.TrimSpace(c.Harvest.Month) == "" {
		return fmt.Errorf("harvest.month is required")
	}
	if c.Harvest.Year <= 0 {
		return fmt.Errorf("harvest.year must be positive")
	}
	if c.Harvest.Category == "" {
		return fmt.Errorf("harvest.category is required")
	}
	if c.Timing.WaitTimeout <= 0 {
		return fmt.Errorf("timing.wait_timeout must be positive")
	}
	if c.Timing.PollInterval <= 0 {
		return fmt.Errorf("timing.poll_interval must be positive")
	}
	if c.Calendar.Trigger == "" || c.Calendar.Header == "" || c.Calendar.Prev == "" {
		return fmt.Errorf("calendar trigger, header and prev locators are required")
	}
	if c.Download.Enabled {
		if c.Download.Trigger == "" {
			return fmt.Errorf("download.trigger is required when download is enabled")
		}
		if c.Download.Filename == "" {
			return fmt.Errorf("download.filename is required when download is enabled")
		}
	}
	return nil
}
