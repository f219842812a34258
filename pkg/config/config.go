// Package config handles configuration for the ws-e2e harness.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

// Defaults for the app under test.
const (
	DefaultAppiumURL    = "http://127.0.0.1:4723"
	DefaultAppPackage   = "com.fin.whiteswan"
	DefaultMainActivity = "com.fin.whiteswan.MainActivity"
	DefaultStrategy     = "clear-data"
)

// Config represents the workspace configuration (ws-e2e.yaml).
type Config struct {
	// Session settings
	AppiumURL    string                 `yaml:"appiumUrl"`
	AppPackage   string                 `yaml:"appPackage"`
	APKPath      string                 `yaml:"apkPath"`
	UDID         string                 `yaml:"udid"` // Device serial override
	Capabilities map[string]interface{} `yaml:"capabilities"`

	// MainActivity is the explicit start component (RECOVER_MAIN_ACTIVITY or
	// APP_ACTIVITY). Empty means "not configured".
	MainActivity string `yaml:"mainActivity"`

	Recovery  RecoveryConfig      `yaml:"recovery"`
	Prepare   PrepareConfig       `yaml:"prepare"`
	Artifacts core.ArtifactConfig `yaml:"artifacts"`

	// Output. An empty OutputDir means <home>/reports.
	OutputDir             string `yaml:"outputDir"`
	InlineStepScreenshots bool   `yaml:"inlineStepScreenshots"`

	// Test data
	Owner Credentials `yaml:"owner"`
}

// RecoveryConfig drives the between-test recovery sequence.
type RecoveryConfig struct {
	Strategy       string `yaml:"strategy"`       // restart | clear-data | reinstall
	Enabled        bool   `yaml:"enabled"`        // RECOVER_PREV_FAIL; false skips recovery
	ForceReinstall bool   `yaml:"forceReinstall"` // RECOVER_FORCE_REINSTALL
	WaitMs         int    `yaml:"waitMs"`         // RECOVER_WAIT_MS

	// Activities that may be foreground briefly while the app boots.
	// Verification waits them out before classifying the outcome.
	TransitionalActivities []string `yaml:"transitionalActivities"`
	TransitionalWaitMs     int      `yaml:"transitionalWaitMs"`
}

// PrepareConfig drives onboarding and environment preparation.
type PrepareConfig struct {
	InitialPauseMs        int  `yaml:"initialPauseMs"`        // PREPARE_APP_INITIAL_PAUSE_MS
	WaitActionButton      bool `yaml:"waitActionButton"`      // WAIT_ACTION_BUTTON
	ActionButtonTimeoutMs int  `yaml:"actionButtonTimeoutMs"` // ACTION_BUTTON_WAIT_TIMEOUT_MS
}

// Credentials of the registered owner account used by login tests.
type Credentials struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Default returns the configuration used when no file or override is present.
func Default() *Config {
	return &Config{
		AppiumURL:  DefaultAppiumURL,
		AppPackage: DefaultAppPackage,
		Recovery: RecoveryConfig{
			Strategy:               DefaultStrategy,
			Enabled:                true,
			TransitionalActivities: []string{".SplashActivity"},
			TransitionalWaitMs:     5000,
		},
		Prepare: PrepareConfig{
			InitialPauseMs:        1000,
			WaitActionButton:      true,
			ActionButtonTimeoutMs: 8000,
		},
		Artifacts:             core.DefaultArtifactConfig(),
		InlineStepScreenshots: true,
	}
}

// StartActivity returns the component used for explicit starts,
// falling back to the app's main activity.
func (c *Config) StartActivity() string {
	if c.MainActivity != "" {
		return c.MainActivity
	}
	return DefaultMainActivity
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.AppPackage == "" {
		return core.ErrMissingRequired.WithMessage("appPackage is required")
	}
	if c.AppiumURL == "" {
		return core.ErrMissingRequired.WithMessage("appiumUrl is required")
	}
	if c.Recovery.WaitMs < 0 {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("recovery.waitMs must not be negative, got %d", c.Recovery.WaitMs))
	}
	return nil
}

// Load loads configuration from a file on top of Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir looks for ws-e2e.yaml or ws-e2e.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"ws-e2e.yaml", "ws-e2e.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, use defaults
	return Default(), nil
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment overrides onto the configuration.
// Malformed numeric values are reported and leave the field unchanged.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	var errs []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s=%q is not a number", key, v))
			return
		}
		*dst = n
	}
	// Flags follow the convention of the shell scripts that drive the
	// suite: only the literal "false" (or "true") flips a default.
	off := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v == "false" {
			*dst = false
		}
	}
	on := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v == "true" {
			*dst = true
		}
	}

	str("APPIUM_URL", &c.AppiumURL)
	str("APP_PACKAGE", &c.AppPackage)
	str("APK_PATH", &c.APKPath)
	str("UDID", &c.UDID)

	// RECOVER_MAIN_ACTIVITY wins over APP_ACTIVITY.
	str("APP_ACTIVITY", &c.MainActivity)
	str("RECOVER_MAIN_ACTIVITY", &c.MainActivity)

	if v, ok := lookup("RECOVER_STRATEGY"); ok && v != "" {
		c.Recovery.Strategy = strings.ToLower(v)
	}
	off("RECOVER_PREV_FAIL", &c.Recovery.Enabled)
	on("RECOVER_FORCE_REINSTALL", &c.Recovery.ForceReinstall)
	num("RECOVER_WAIT_MS", &c.Recovery.WaitMs)

	off("WAIT_ACTION_BUTTON", &c.Prepare.WaitActionButton)
	num("ACTION_BUTTON_WAIT_TIMEOUT_MS", &c.Prepare.ActionButtonTimeoutMs)
	num("PREPARE_APP_INITIAL_PAUSE_MS", &c.Prepare.InitialPauseMs)

	off("ENHANCED_DEBUG", &c.Artifacts.EnhancedDebug)
	off("CLEAR_LOGCAT", &c.Artifacts.ClearLogcat)
	on("SCREENSHOT_ON_PASS", &c.Artifacts.CaptureOnSuccess)
	off("INLINE_STEP_SCREENSHOTS", &c.InlineStepScreenshots)
	num("MEMINFO_LINES", &c.Artifacts.MeminfoLines)
	on("LOGS_ON_PASS", &c.Artifacts.LogsOnPass)
	on("ALWAYS_ATTACH_VIDEO", &c.Artifacts.AlwaysVideo)
	if v, ok := lookup("DISABLE_NATIVE_VIDEO"); ok && v == "true" {
		c.Artifacts.Video = false
	}

	str("OWNER_EMAIL", &c.Owner.Email)
	str("OWNER_PASSWORD", &c.Owner.Password)

	if len(errs) > 0 {
		return core.ErrInvalidConfig.WithMessage(strings.Join(errs, "; "))
	}
	return nil
}
