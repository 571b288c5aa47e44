package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"jerseysync/internal/retry"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Portal     PortalConfig     `yaml:"portal"`
	Google     GoogleConfig     `yaml:"google"`
	Retry      retry.Config     `yaml:"rate_limiting"`
	Downloads  DownloadConfig   `yaml:"downloads"`
	Batch      BatchConfig      `yaml:"batch"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

// PortalConfig drives the registration portal automation.
type PortalConfig struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	LoginURL   string `yaml:"login_url"`
	BaseURL    string `yaml:"base_url"`
	ReportsURL string `yaml:"reports_url"`

	Headless        bool          `yaml:"headless"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
	TakeScreenshots bool          `yaml:"take_screenshots"`
	ScreenshotDir   string        `yaml:"screenshot_dir"`

	Association AssociationConfig `yaml:"association"`
	Season      SeasonConfig      `yaml:"season"`
}

// AssociationConfig holds the selector fallback chain for the association
// selection stage. The portal's markup is unstable, so alternatives are
// tried in listed order after the primary.
type AssociationConfig struct {
	PrimarySelector      string        `yaml:"primary_selector"`
	AlternativeSelectors []string      `yaml:"alternative_selectors"`
	Timeout              time.Duration `yaml:"timeout"`
}

type SeasonConfig struct {
	LinkSelector      string        `yaml:"link_selector"`
	SelectionStrategy string        `yaml:"selection_strategy"` // latest or specific
	SpecificSeason    string        `yaml:"specific_season"`
	Timeout           time.Duration `yaml:"timeout"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	OrdersSheetName string `yaml:"orders_sheet_name"`
	SenderEmail     string `yaml:"sender_email"`
}

type DownloadConfig struct {
	Directory       string        `yaml:"directory"`
	FilenamePattern string        `yaml:"filename_pattern"`
	Timeout         time.Duration `yaml:"timeout"`
	RetentionDays   int           `yaml:"retention_days"`
}

type BatchConfig struct {
	Size      int    `yaml:"size"`
	PrefsPath string `yaml:"prefs_path"`
}

// Load reads the YAML config, expanding ${VAR} references from the
// environment (a .env file is honored when present).
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Google.SpreadsheetID == "" {
		return errors.New("google.spreadsheet_id is required")
	}
	if c.Google.CredentialsFile == "" {
		return errors.New("google.credentials_file is required")
	}
	if c.Google.SenderEmail == "" {
		return errors.New("google.sender_email is required")
	}
	switch c.Portal.Season.SelectionStrategy {
	case "", "latest":
	case "specific":
		if c.Portal.Season.SpecificSeason == "" {
			return errors.New("portal.season.specific_season is required with strategy=specific")
		}
	default:
		return fmt.Errorf("unknown season selection strategy: %s", c.Portal.Season.SelectionStrategy)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "jerseysync"
	}
	if c.Portal.LoginURL == "" {
		c.Portal.LoginURL = "https://portal.usahockey.com/tool/login"
	}
	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = "https://portal.usahockey.com"
	}
	if c.Portal.ReportsURL == "" {
		c.Portal.ReportsURL = "https://portal.usahockey.com/tool/reports"
	}
	if c.Portal.PageLoadTimeout == 0 {
		c.Portal.PageLoadTimeout = 30 * time.Second
	}
	if c.Portal.Association.PrimarySelector == "" {
		c.Portal.Association.PrimarySelector = `a[onclick*='select_association']`
	}
	if c.Portal.Association.Timeout == 0 {
		c.Portal.Association.Timeout = 15 * time.Second
	}
	if c.Portal.Season.LinkSelector == "" {
		c.Portal.Season.LinkSelector = `a[onclick*='check_waiver']`
	}
	if c.Portal.Season.Timeout == 0 {
		c.Portal.Season.Timeout = 10 * time.Second
	}
	if c.Portal.Season.SelectionStrategy == "" {
		c.Portal.Season.SelectionStrategy = "latest"
	}
	if c.Google.OrdersSheetName == "" {
		c.Google.OrdersSheetName = "Jersey Orders"
	}
	if c.Downloads.Directory == "" {
		c.Downloads.Directory = "downloads/usa_hockey"
	}
	if c.Downloads.FilenamePattern == "" {
		c.Downloads.FilenamePattern = "master_registration_{timestamp}.csv"
	}
	if c.Downloads.Timeout == 0 {
		c.Downloads.Timeout = 5 * time.Minute
	}
	if c.Downloads.RetentionDays == 0 {
		c.Downloads.RetentionDays = 30
	}
	if c.Batch.Size == 0 {
		c.Batch.Size = 5
	}
	if c.Batch.PrefsPath == "" {
		c.Batch.PrefsPath = "prefs.json"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// HasPortalCredentials reports whether both portal credentials are set.
func (c *PortalConfig) HasPortalCredentials() bool {
	return c.Username != "" && c.Password != ""
}
