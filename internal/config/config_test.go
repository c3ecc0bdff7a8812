// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "lancet", cfg.Logger().ServiceName)
	assert.Equal(t, DriverChromedp, cfg.Browser().Driver)
	assert.Equal(t, EngineChromium, cfg.Browser().Engine)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 1280, cfg.Browser().Viewport.Width)
	assert.Equal(t, "https://the-internet.herokuapp.com", cfg.Runner().BaseURL)
	assert.Equal(t, 4, cfg.Runner().Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Runner().ScenarioTimeout)
	assert.Equal(t, 5*time.Second, cfg.Timeouts().Assertion)
	assert.Equal(t, 100*time.Millisecond, cfg.Timeouts().PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Timeouts().Upload)
	assert.False(t, cfg.Artifacts().S3.Enabled)

	require.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "chromedp cannot drive firefox",
			mutate:  func(c *Config) { c.BrowserCfg.Engine = EngineFirefox },
			wantErr: `only supports engine "chromium"`,
		},
		{
			name: "playwright drives webkit",
			mutate: func(c *Config) {
				c.BrowserCfg.Driver = DriverPlaywright
				c.BrowserCfg.Engine = EngineWebKit
			},
		},
		{
			name: "playwright rejects unknown engine",
			mutate: func(c *Config) {
				c.BrowserCfg.Driver = DriverPlaywright
				c.BrowserCfg.Engine = "netscape"
			},
			wantErr: "browser.engine must be one of",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.BrowserCfg.Driver = "selenium" },
			wantErr: "browser.driver must be",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.RunnerCfg.Concurrency = 0 },
			wantErr: "runner.concurrency must be a positive integer",
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.RunnerCfg.BaseURL = "/upload" },
			wantErr: "runner.base_url must be an absolute http(s) URL",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.TimeoutsCfg.PollInterval = 0 },
			wantErr: "timeouts.poll_interval must be positive",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.ArtifactsCfg.S3.Enabled = true },
			wantErr: "artifacts.s3.bucket is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  driver: playwright
  engine: firefox
runner:
  base_url: "http://localhost:8080"
  concurrency: 2
timeouts:
  assertion: 7s
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, DriverPlaywright, cfg.Browser().Driver)
		assert.Equal(t, EngineFirefox, cfg.Browser().Engine)
		assert.Equal(t, "http://localhost:8080", cfg.Runner().BaseURL)
		assert.Equal(t, 2, cfg.Runner().Concurrency)
		assert.Equal(t, 7*time.Second, cfg.Timeouts().Assertion)
		// Untouched keys keep their defaults.
		assert.Equal(t, 10*time.Second, cfg.Timeouts().Action)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("runner.concurrency", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "runner.concurrency must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
database:
  url: "postgres://configfile/db"
`)))

		t.Setenv("LANCET_DATABASE_URL", "postgres://envvar/db")
		t.Setenv("LANCET_S3_ACCESS_KEY_ID", "AKIDTEST")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "postgres://envvar/db", cfg.Database().URL)
		assert.Equal(t, "AKIDTEST", cfg.Artifacts().S3.AccessKeyID)
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	var iface Interface = cfg

	iface.SetRunnerBaseURL("http://127.0.0.1:9999")
	iface.SetRunnerConcurrency(8)
	iface.SetBrowserDriver(DriverPlaywright)
	iface.SetBrowserEngine(EngineWebKit)
	iface.SetBrowserHeadless(false)

	assert.Equal(t, "http://127.0.0.1:9999", iface.Runner().BaseURL)
	assert.Equal(t, 8, iface.Runner().Concurrency)
	assert.Equal(t, EngineWebKit, iface.Browser().Engine)
	assert.False(t, iface.Browser().Headless)
	assert.NoError(t, cfg.Validate())
}
