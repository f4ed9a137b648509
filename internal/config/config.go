package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// BrowserConfig controls the Chromium instance holding the calendar login.
type BrowserConfig struct {
	// UserDataDir is the persistent profile. The calendar session lives here,
	// so it must survive restarts.
	UserDataDir string `yaml:"user_data_dir" json:"user_data_dir"`
	Headless    bool   `yaml:"headless" json:"headless"`
	Width       int    `yaml:"width" json:"width"`
	Height      int    `yaml:"height" json:"height"`
	UserAgent   string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	// ExecPath overrides the browser binary. Empty means chromedp's lookup.
	ExecPath string `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
}

// CalendarConfig describes the remote calendar UI. Label lists are ordered
// candidates; the first one present wins.
type CalendarConfig struct {
	BaseURL         string   `yaml:"base_url" json:"base_url"`
	ReadySelector   string   `yaml:"ready_selector" json:"ready_selector"`
	EventSelector   string   `yaml:"event_selector" json:"event_selector"`
	HourRowSelector string   `yaml:"hour_row_selector" json:"hour_row_selector"`
	HourRows        int      `yaml:"hour_rows" json:"hour_rows"`
	DialogSelector  string   `yaml:"dialog_selector" json:"dialog_selector"`
	DayViewKey      string   `yaml:"day_view_key" json:"day_view_key"`
	TitleLabels     []string `yaml:"title_labels" json:"title_labels"`
	StartLabels     []string `yaml:"start_labels" json:"start_labels"`
	EndLabels       []string `yaml:"end_labels" json:"end_labels"`
	SaveLabels      []string `yaml:"save_labels" json:"save_labels"`
}

// TimeoutsConfig bounds each wait. Only ViewLoad is fatal to an attempt.
type TimeoutsConfig struct {
	ViewLoad      time.Duration `yaml:"view_load" json:"view_load"`
	DialogVisible time.Duration `yaml:"dialog_visible" json:"dialog_visible"`
	DialogDetach  time.Duration `yaml:"dialog_detach" json:"dialog_detach"`
	Settle        time.Duration `yaml:"settle" json:"settle"`
	Request       time.Duration `yaml:"request" json:"request"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// ArtifactDir receives diagnostic screenshots.
	ArtifactDir string `yaml:"artifact_dir" json:"artifact_dir"`

	// DefaultDuration is the length of an event given as a single time.
	DefaultDuration time.Duration `yaml:"default_duration" json:"default_duration"`

	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Timeouts TimeoutsConfig `yaml:"timeouts" json:"timeouts"`

	// ICSFeedURL, if set, is the calendar's private ICS export. Its entries
	// are added to the scraped ones during conflict checks.
	ICSFeedURL string `yaml:"ics_feed_url,omitempty" json:"ics_feed_url,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{Browser: BrowserConfig{Headless: true}}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values so partially-filled files still
// work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = "./var/artifacts"
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = time.Hour
	}

	b := &c.Browser
	if b.UserDataDir == "" {
		b.UserDataDir = "./var/chrome-profile"
	}
	if b.Width <= 0 {
		b.Width = 1280
	}
	if b.Height <= 0 {
		b.Height = 900
	}

	cal := &c.Calendar
	cal.BaseURL = strings.TrimRight(cal.BaseURL, "/")
	if cal.BaseURL == "" {
		cal.BaseURL = "https://calendar.google.com/calendar/u/0/r"
	}
	if cal.ReadySelector == "" {
		cal.ReadySelector = "div.XsRa1c"
	}
	if cal.EventSelector == "" {
		cal.EventSelector = "div[data-eventid]"
	}
	if cal.HourRowSelector == "" {
		cal.HourRowSelector = "div.XsRa1c"
	}
	if cal.HourRows <= 0 {
		cal.HourRows = 24
	}
	if cal.DialogSelector == "" {
		cal.DialogSelector = "div[role='dialog']"
	}
	if cal.DayViewKey == "" {
		cal.DayViewKey = "1"
	}
	if len(cal.TitleLabels) == 0 {
		cal.TitleLabels = []string{"添加标题", "活动名称", "标题", "标题（可选）"}
	}
	if len(cal.StartLabels) == 0 {
		cal.StartLabels = []string{"开始时间", "开始", "开始日期"}
	}
	if len(cal.EndLabels) == 0 {
		cal.EndLabels = []string{"结束时间", "结束", "结束日期"}
	}
	if len(cal.SaveLabels) == 0 {
		cal.SaveLabels = []string{"保存"}
	}

	t := &c.Timeouts
	if t.ViewLoad <= 0 {
		t.ViewLoad = 30 * time.Second
	}
	if t.DialogVisible <= 0 {
		t.DialogVisible = 8 * time.Second
	}
	if t.DialogDetach <= 0 {
		t.DialogDetach = 5 * time.Second
	}
	if t.Settle <= 0 {
		t.Settle = 1200 * time.Millisecond
	}
	if t.Request <= 0 {
		t.Request = 2 * time.Minute
	}

	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Headless unless the file says otherwise.
	cfg := Config{Browser: BrowserConfig{Headless: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".voicecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
