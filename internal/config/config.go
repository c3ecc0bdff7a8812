// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Runner() RunnerConfig
	Timeouts() TimeoutConfig
	Artifacts() ArtifactsConfig
	Database() DatabaseConfig
	Metrics() MetricsConfig

	// Runner Setters
	SetRunnerBaseURL(string)
	SetRunnerConcurrency(int)

	// Browser Setters
	SetBrowserEngine(string)
	SetBrowserDriver(string)
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration.
// Sections are exported for viper's decoder and read through the Interface getters.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	RunnerCfg    RunnerConfig    `mapstructure:"runner" yaml:"runner"`
	TimeoutsCfg  TimeoutConfig   `mapstructure:"timeouts" yaml:"timeouts"`
	ArtifactsCfg ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	MetricsCfg   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Runner() RunnerConfig       { return c.RunnerCfg }
func (c *Config) Timeouts() TimeoutConfig    { return c.TimeoutsCfg }
func (c *Config) Artifacts() ArtifactsConfig { return c.ArtifactsCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }
func (c *Config) Metrics() MetricsConfig     { return c.MetricsCfg }

// -- Runner Setters --
func (c *Config) SetRunnerBaseURL(u string)  { c.RunnerCfg.BaseURL = u }
func (c *Config) SetRunnerConcurrency(n int) { c.RunnerCfg.Concurrency = n }

// -- Browser Setters --
func (c *Config) SetBrowserEngine(e string) { c.BrowserCfg.Engine = e }
func (c *Config) SetBrowserDriver(d string) { c.BrowserCfg.Driver = d }
func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Supported automation drivers.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// Supported browser engines.
const (
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
	EngineWebKit   = "webkit"
)

// BrowserConfig selects and tunes the driven browser.
type BrowserConfig struct {
	Driver   string         `mapstructure:"driver" yaml:"driver"`
	Engine   string         `mapstructure:"engine" yaml:"engine"`
	Headless bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args     []string       `mapstructure:"args" yaml:"args"`
	Viewport ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	// Install downloads the Playwright driver and browsers before launch.
	Install bool `mapstructure:"install" yaml:"install"`
}

// ViewportConfig is the window size of every new page.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// RunnerConfig configures scenario scheduling.
type RunnerConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	Concurrency     int           `mapstructure:"concurrency" yaml:"concurrency"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout" yaml:"scenario_timeout"`
	FixturesDir     string        `mapstructure:"fixtures_dir" yaml:"fixtures_dir"`
	FailFast        bool          `mapstructure:"fail_fast" yaml:"fail_fast"`
}

// TimeoutConfig bounds every suspension point inside a scenario.
type TimeoutConfig struct {
	Navigation   time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Action       time.Duration `mapstructure:"action" yaml:"action"`
	Assertion    time.Duration `mapstructure:"assertion" yaml:"assertion"`
	Popup        time.Duration `mapstructure:"popup" yaml:"popup"`
	Dialog       time.Duration `mapstructure:"dialog" yaml:"dialog"`
	Upload       time.Duration `mapstructure:"upload" yaml:"upload"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ArtifactsConfig controls where failure diagnostics go.
type ArtifactsConfig struct {
	Dir      string   `mapstructure:"dir" yaml:"dir"`
	Compress bool     `mapstructure:"compress" yaml:"compress"`
	S3       S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config describes an S3 compatible bucket for artifacts.
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Region          string `mapstructure:"region" yaml:"region"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// MetricsConfig configures the Prometheus push target.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url"`
	Job            string `mapstructure:"job" yaml:"job"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "lancet")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.engine", EngineChromium)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.install", false)

	// -- Runner --
	v.SetDefault("runner.base_url", "https://the-internet.herokuapp.com")
	v.SetDefault("runner.concurrency", 4)
	v.SetDefault("runner.scenario_timeout", "2m")
	v.SetDefault("runner.fixtures_dir", "fixtures")
	v.SetDefault("runner.fail_fast", false)

	// -- Timeouts --
	v.SetDefault("timeouts.navigation", "30s")
	v.SetDefault("timeouts.action", "10s")
	v.SetDefault("timeouts.assertion", "5s")
	v.SetDefault("timeouts.popup", "10s")
	v.SetDefault("timeouts.dialog", "5s")
	v.SetDefault("timeouts.upload", "60s")
	v.SetDefault("timeouts.poll_interval", "100ms")

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.compress", false)
	v.SetDefault("artifacts.s3.enabled", false)
	v.SetDefault("artifacts.s3.region", "us-east-1")
	v.SetDefault("artifacts.s3.prefix", "lancet")
	v.SetDefault("artifacts.s3.use_path_style", false)

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Metrics --
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "lancet")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials are commonly supplied through the environment only.
	_ = v.BindEnv("artifacts.s3.access_key_id", "LANCET_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("artifacts.s3.secret_access_key", "LANCET_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("database.url", "LANCET_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the runner cannot work with.
func (c *Config) Validate() error {
	if err := c.BrowserCfg.Validate(); err != nil {
		return err
	}
	if c.RunnerCfg.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.RunnerCfg.ScenarioTimeout <= 0 {
		return fmt.Errorf("runner.scenario_timeout must be positive")
	}
	u, err := url.Parse(c.RunnerCfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("runner.base_url must be an absolute http(s) URL, got %q", c.RunnerCfg.BaseURL)
	}
	if err := c.TimeoutsCfg.Validate(); err != nil {
		return err
	}
	if c.ArtifactsCfg.S3.Enabled && c.ArtifactsCfg.S3.Bucket == "" {
		return fmt.Errorf("artifacts.s3.bucket is required when artifacts.s3.enabled is true")
	}
	return nil
}

// Validate checks driver and engine compatibility.
func (b BrowserConfig) Validate() error {
	switch strings.ToLower(b.Driver) {
	case DriverChromedp:
		// CDP only speaks to Chromium based browsers.
		if strings.ToLower(b.Engine) != EngineChromium {
			return fmt.Errorf("browser.driver %q only supports engine %q, got %q", DriverChromedp, EngineChromium, b.Engine)
		}
	case DriverPlaywright:
		switch strings.ToLower(b.Engine) {
		case EngineChromium, EngineFirefox, EngineWebKit:
		default:
			return fmt.Errorf("browser.engine must be one of chromium, firefox, webkit, got %q", b.Engine)
		}
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverPlaywright, b.Driver)
	}
	if b.Viewport.Width < 0 || b.Viewport.Height < 0 {
		return fmt.Errorf("browser.viewport dimensions must not be negative")
	}
	return nil
}

// Validate requires every timeout to be positive.
func (t TimeoutConfig) Validate() error {
	checks := []struct {
		name string
		d    time.Duration
	}{
		{"timeouts.navigation", t.Navigation},
		{"timeouts.action", t.Action},
		{"timeouts.assertion", t.Assertion},
		{"timeouts.popup", t.Popup},
		{"timeouts.dialog", t.Dialog},
		{"timeouts.upload", t.Upload},
		{"timeouts.poll_interval", t.PollInterval},
	}
	for _, c := range checks {
		if c.d <= 0 {
			return fmt.Errorf("%s must be positive", c.name)
		}
	}
	return nil
}
