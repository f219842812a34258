package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/whiteswan/mobile-e2e/pkg/config"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// Settings are the global flag values.
type Settings struct {
	ConfigPath  string
	AppiumURL   string
	UDID        string
	AppPackage  string
	APKPath     string
	Output      string
	Flatten     bool
	LogFile     string
	MetricsAddr string
	Verbose     bool
}

// flagString reads a flag from the closest context that set it. Global
// flags live in the parent context when a subcommand runs.
func flagString(c *cli.Context, name string) string {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx.String(name)
		}
	}
	return c.String(name)
}

func flagBool(c *cli.Context, name string) bool {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx.Bool(name)
		}
	}
	return c.Bool(name)
}

func settingsFrom(c *cli.Context) Settings {
	return Settings{
		ConfigPath:  flagString(c, "config"),
		AppiumURL:   flagString(c, "appium-url"),
		UDID:        flagString(c, "udid"),
		AppPackage:  flagString(c, "app-package"),
		APKPath:     flagString(c, "apk"),
		Output:      flagString(c, "output"),
		Flatten:     flagBool(c, "flatten"),
		LogFile:     flagString(c, "log-file"),
		MetricsAddr: flagString(c, "metrics-addr"),
		Verbose:     flagBool(c, "verbose"),
	}
}

// LoadConfig layers defaults, the config file, the environment and the
// flags, in that order, and validates the result.
func (s Settings) LoadConfig(lookup config.LookupFunc) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if s.ConfigPath != "" {
		cfg, err = config.Load(s.ConfigPath)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	override := func(v string, dst *string) {
		if v != "" {
			*dst = v
		}
	}
	override(s.AppiumURL, &cfg.AppiumURL)
	override(s.UDID, &cfg.UDID)
	override(s.AppPackage, &cfg.AppPackage)
	override(s.APKPath, &cfg.APKPath)
	override(s.Output, &cfg.OutputDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveOutputDir determines the run directory.
//   - base "": <home>/reports/<timestamp>/
//   - base given: <base>/<timestamp>/
//   - base + flatten: <base>/ (error if base is empty)
func resolveOutputDir(base string, flatten bool, now time.Time) (string, error) {
	if flatten && base == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}
	if base == "" {
		base = config.GetReportsDir()
	}
	if flatten {
		return filepath.Clean(base), nil
	}
	return filepath.Join(base, now.Format("2006-01-02_15-04-05")), nil
}

// initLogging opens the run log and mirrors warnings (or everything, with
// --verbose) to stderr.
func initLogging(s Settings, outputDir string) (string, error) {
	logPath := s.LogFile
	if logPath == "" {
		logPath = filepath.Join(outputDir, "ws-e2e.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	if err := logger.Init(logPath); err != nil {
		return "", err
	}
	level := logger.LevelWarn
	if s.Verbose {
		level = logger.LevelDebug
	}
	logger.SetConsole(os.Stderr, level)
	return logPath, nil
}
