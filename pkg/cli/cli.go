// Package cli provides the command-line interface for ws-e2e.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands. Values given here override
// both ws-e2e.yaml and the environment.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (default: ./ws-e2e.yaml when present)",
	},
	&cli.StringFlag{
		Name:  "appium-url",
		Usage: "Appium server URL",
	},
	&cli.StringFlag{
		Name:    "udid",
		Aliases: []string{"device"},
		Usage:   "Device serial (default: first attached device)",
	},
	&cli.StringFlag{
		Name:  "app-package",
		Usage: "Package of the app under test",
	},
	&cli.StringFlag{
		Name:  "apk",
		Usage: "APK used by the reinstall strategy and fresh sessions",
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Report directory (a timestamped run folder is created inside)",
	},
	&cli.BoolFlag{
		Name:  "flatten",
		Usage: "Write reports directly into --output without a run folder",
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Log file (default: <run folder>/ws-e2e.log)",
	},
	&cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "Serve Prometheus metrics on this address while running (e.g. :9464)",
		EnvVars: []string{"WS_E2E_METRICS_ADDR"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Mirror debug logs to stderr",
		EnvVars: []string{"WS_E2E_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ws-e2e",
		Usage:   "End-to-end UI tests for the WhiteSwan Android app",
		Version: Version,
		Description: `ws-e2e drives the app through an Appium server, recovers the device
between tests and writes Allure results.

Examples:
  ws-e2e run
  ws-e2e --udid emulator-5554 run --only "Add income"
  ws-e2e run --inject-failure "Add expense"
  ws-e2e recover --strategy reinstall
  ws-e2e devices`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			recoverCommand,
			diagnoseCommand,
			devicesCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
