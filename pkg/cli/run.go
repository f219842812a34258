package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/whiteswan/mobile-e2e/pkg/config"
	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/device"
	"github.com/whiteswan/mobile-e2e/pkg/driver/appium"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
	"github.com/whiteswan/mobile-e2e/pkg/metrics"
	"github.com/whiteswan/mobile-e2e/pkg/recovery"
	"github.com/whiteswan/mobile-e2e/pkg/report"
	"github.com/whiteswan/mobile-e2e/pkg/runstate"
	"github.com/whiteswan/mobile-e2e/pkg/suite"
)

// suiteName labels Allure results and the executor entry.
const suiteName = "whiteswan"

// adbBridge is the adb used by every command. Tests swap its Runner.
var adbBridge = device.ADB{}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run the end-to-end scenarios",
	Description: `Runs the built-in scenarios in order against one Appium session.
A failed test marks the app dirty; the configured recovery strategy runs
before the next test.

Examples:
  ws-e2e run
  ws-e2e run --only income --only expense
  ws-e2e run --inject-failure "Owner login" --inject-times 1
  ws-e2e run --start-emulator Pixel_7_API_34 --shutdown-after`,
	Flags: append([]cli.Flag{
		&cli.StringSliceFlag{
			Name:  "only",
			Usage: "Run only scenarios whose name contains this text (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "inject-failure",
			Usage: "Force the named scenario to fail, to exercise recovery (repeatable)",
		},
		&cli.IntFlag{
			Name:  "inject-times",
			Usage: "Fail injected scenarios only on their first N runs (0 = always)",
		},
	}, emulatorFlags...),
	Action: runTests,
}

func runTests(c *cli.Context) error {
	s := settingsFrom(c)
	cfg, err := s.LoadConfig(os.LookupEnv)
	if err != nil {
		return err
	}

	tests, err := suite.Select(suite.Scenarios(), c.StringSlice("only"))
	if err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(cfg.OutputDir, s.Flatten, time.Now())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	logPath, err := initLogging(s, outputDir)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := commandContext(c)
	defer stop()

	out := os.Stdout
	printBanner(out)
	logger.Info("ws-e2e %s, output %s, log %s", Version, outputDir, logPath)

	if s.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, s.MetricsAddr); err != nil {
				logger.Warn("metrics server on %s stopped: %v", s.MetricsAddr, err)
			}
		}()
		printSetupSuccess(out, fmt.Sprintf("Metrics on %s/metrics", s.MetricsAddr))
	}

	if avd := c.String("start-emulator"); avd != "" {
		inst, err := ensureEmulator(ctx, out, avd, c.Duration("boot-timeout"))
		if err != nil {
			return err
		}
		if inst != nil {
			if cfg.UDID == "" {
				cfg.UDID = inst.Serial
			}
			if c.Bool("shutdown-after") {
				defer shutdownEmulator(inst)
			}
		}
	}

	target := detectTarget(ctx, adbBridge, cfg.UDID)
	capEnv := capabilityEnv(os.LookupEnv)
	dev := adbBridge.Device(ctx, target.Serial)
	reportDev := reportDevice(ctx, dev, target)

	client, err := openSession(out, cfg, BuildCapabilities(cfg, target, capEnv))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			logger.Warn("disconnect: %v", err)
		}
	}()

	writer, err := report.NewWriter(outputDir, suiteName, nil)
	if err != nil {
		return err
	}
	if err := writer.WriteRunFiles(reportEnvironment(cfg, target, capEnv, os.LookupEnv)); err != nil {
		logger.Warn("allure run files: %v", err)
	}
	index := report.NewIndexWriter(outputDir, &report.Index{
		Device: reportDev,
		App: report.App{ID: cfg.AppPackage, Version: lookupOr(os.LookupEnv, "APP_VERSION", "")},
	}, nil)

	flags := runstate.New()
	opts := suite.DefaultOptions(cfg)
	if names := c.StringSlice("inject-failure"); len(names) > 0 {
		opts.Injector = suite.FailOn(c.Int("inject-times"), names...)
		logger.Info("failure injection enabled for %v", names)
	}
	p := progress{w: out}
	opts.OnTestStart = p.onTestStart
	opts.OnTestEnd = p.onTestEnd

	runner := suite.New(suite.Deps{
		Session:   client,
		Device:    dev,
		Flags:     flags,
		Recoverer: recovery.New(client, flags, recovery.ADBDevice(adbBridge, target.Serial), nil, recovery.OptionsFromConfig(cfg)),
		Reporter:  writer,
		Index:     index,
	}, opts)

	result, err := runner.Run(ctx, tests)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	suite.PrintSummary(out, result)
	fmt.Fprintf(out, "\n  Allure results: %s\n  Report index:   %s\n  Log:            %s\n\n",
		writer.Dir(), index.Path(), logPath)

	if !result.Success() {
		return fmt.Errorf("%d of %d tests did not pass", result.Failed+result.Broken, result.Total)
	}
	return nil
}

// openSession connects to Appium with caps.
func openSession(out io.Writer, cfg *config.Config, caps map[string]interface{}) (*appium.Client, error) {
	printSetupStep(out, fmt.Sprintf("Connecting to Appium server: %s", cfg.AppiumURL))
	logger.Info("Creating Appium session with capabilities: %v", caps)

	client := appium.NewClient(cfg.AppiumURL)
	if err := client.Connect(caps); err != nil {
		logger.Error("Failed to create Appium session: %v", err)
		return nil, core.ErrServerUnreachable.
			WithMessage(fmt.Sprintf("create Appium session at %s", cfg.AppiumURL)).
			WithCause(err)
	}
	printSetupSuccess(out, fmt.Sprintf("Appium session %s", client.SessionID()))
	return client, nil
}

// reportEnvironment is written to environment.properties.
// reportDevice describes the target for report.json. Properties adb could
// not read are logged and recorded as "unknown".
func reportDevice(ctx context.Context, dev *device.AndroidDevice, t Target) report.Device {
	info, err := dev.Info(ctx)
	if err != nil {
		logger.Warn("device info for %s: %v", t.Serial, err)
	}
	return report.Device{
		ID:         t.Serial,
		Name:       orDefault(info.Model, "unknown"),
		Platform:   "android",
		OSVersion:  orDefault(info.Release, orDefault(t.PlatformVersion, "unknown")),
		IsEmulator: !t.IsReal,
	}
}

func reportEnvironment(cfg *config.Config, t Target, env CapabilityEnv, lookup config.LookupFunc) report.Environment {
	deviceName := env.DeviceName
	if deviceName == "" {
		deviceName = "Emulator"
		if t.IsReal {
			deviceName = "Real Device"
		}
	}
	environment := "Local (Emulator)"
	switch {
	case env.CI:
		environment = "CI (Jenkins)"
	case t.IsReal:
		environment = "Local (Real Device)"
	}
	return report.Environment{
		"OS":               runtime.GOOS,
		"Go":               runtime.Version(),
		"Device":           deviceName,
		"App Version":      lookupOr(lookup, "APP_VERSION", "1.0.0"),
		"Platform":         "Android",
		"Environment":      environment,
		"UDID":             orDefault(t.Serial, "N/A"),
		"Build Number":     lookupOr(lookup, "BUILD_NUMBER", "local"),
		"Full Reset":       strconv.FormatBool(env.FullReset),
		"Platform Version": orDefault(t.PlatformVersion, "auto"),
		"App Package":      cfg.AppPackage,
		"Recovery":         string(recovery.ParseStrategy(cfg.Recovery.Strategy)),
	}
}

func lookupOr(lookup config.LookupFunc, key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// commandContext wraps the command context with signal handling.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}
