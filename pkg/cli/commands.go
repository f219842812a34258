package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/whiteswan/mobile-e2e/pkg/config"
	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/device"
	"github.com/whiteswan/mobile-e2e/pkg/diagnostics"
	"github.com/whiteswan/mobile-e2e/pkg/driver/appium"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
	"github.com/whiteswan/mobile-e2e/pkg/recovery"
	"github.com/whiteswan/mobile-e2e/pkg/runstate"
)

var recoverCommand = &cli.Command{
	Name:  "recover",
	Usage: "Reset the app on the device as if the previous test had failed",
	Description: `Runs one recovery pass outside a test run and reports the foreground
activity it ends on.

Examples:
  ws-e2e recover
  ws-e2e recover --strategy restart
  ws-e2e --udid R58M123ABC recover --force-reinstall`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "strategy",
			Usage: "restart, clear-data or reinstall (default from config)",
		},
		&cli.BoolFlag{
			Name:  "force-reinstall",
			Usage: "Reinstall regardless of strategy (needs an APK)",
		},
	},
	Action: runRecover,
}

var diagnoseCommand = &cli.Command{
	Name:  "diagnose",
	Usage: "Print the debug report collected for failed tests",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the raw collected data as JSON",
		},
	},
	Action: runDiagnose,
}

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List attached Android devices",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "avds", Usage: "Also list the AVDs that --start-emulator can boot"},
	},
	Action: runDevices,
}

// toolSession is the config and Appium session shared by the maintenance
// commands.
type toolSession struct {
	cfg    *config.Config
	target Target
	client *appium.Client
}

func (t *toolSession) close() {
	if t.client == nil {
		return
	}
	if err := t.client.Disconnect(); err != nil {
		logger.Warn("disconnect: %v", err)
	}
}

func openToolSession(ctx context.Context, c *cli.Context, tweak func(*config.Config)) (*toolSession, error) {
	s := settingsFrom(c)
	cfg, err := s.LoadConfig(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if tweak != nil {
		tweak(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	level := logger.LevelInfo
	if s.Verbose {
		level = logger.LevelDebug
	}
	logger.SetConsole(c.App.ErrWriter, level)

	target := detectTarget(ctx, adbBridge, cfg.UDID)
	client, err := openSession(c.App.ErrWriter, cfg, BuildCapabilities(cfg, target, capabilityEnv(os.LookupEnv)))
	if err != nil {
		return nil, err
	}
	return &toolSession{cfg: cfg, target: target, client: client}, nil
}

func runRecover(c *cli.Context) error {
	ctx, stop := commandContext(c)
	defer stop()

	ts, err := openToolSession(ctx, c, func(cfg *config.Config) {
		if v := c.String("strategy"); v != "" {
			cfg.Recovery.Strategy = v
		}
		if c.Bool("force-reinstall") {
			cfg.Recovery.ForceReinstall = true
		}
		cfg.Recovery.Enabled = true
	})
	if err != nil {
		return err
	}
	defer ts.close()

	flags := runstate.New()
	flags.MarkTestResult(false)
	r := recovery.New(ts.client, flags, recovery.ADBDevice(adbBridge, ts.target.Serial), nil, recovery.OptionsFromConfig(ts.cfg))

	out := r.EnsureClean(ctx)
	printOutcome(c.App.Writer, out)
	if out.To == recovery.Unverified {
		return core.ErrAppNotForeground.WithMessage(
			fmt.Sprintf("recovery could not verify the app (activity %q, package %q)", out.Activity, out.Package))
	}
	return nil
}

func printOutcome(w io.Writer, out recovery.Outcome) {
	c := colorGreen
	if out.To == recovery.Unverified {
		c = colorRed
	}
	fmt.Fprintf(w, "  strategy  %s\n", out.Strategy)
	if out.Forced {
		fmt.Fprintln(w, "  forced    yes")
	}
	if out.Skipped != "" {
		fmt.Fprintf(w, "  skipped   %s\n", out.Skipped)
	}
	fmt.Fprintf(w, "  state     %s -> %s%s%s\n", out.From, color(c), out.To, color(colorReset))
	fmt.Fprintf(w, "  activity  %s\n", orDefault(out.Activity, "unknown"))
	fmt.Fprintf(w, "  package   %s\n", orDefault(out.Package, "unknown"))
	if out.RetryStarted {
		fmt.Fprintln(w, "  retried   explicit start")
	}
	fmt.Fprintf(w, "  took      %s\n", out.Duration.Round(10*time.Millisecond))
}

func runDiagnose(c *cli.Context) error {
	ctx, stop := commandContext(c)
	defer stop()

	ts, err := openToolSession(ctx, c, nil)
	if err != nil {
		return err
	}
	defer ts.close()

	dev := adbBridge.Device(ctx, ts.target.Serial)
	info := diagnostics.NewCollector(ts.client, dev, nil, ts.cfg.AppPackage).Collect(ctx, "manual diagnose", nil)

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	_, err = io.WriteString(c.App.Writer, diagnostics.FormatReport(info))
	return err
}

func runDevices(c *cli.Context) error {
	ctx, stop := commandContext(c)
	defer stop()

	if c.Bool("avds") {
		avds, err := newEmulatorManager().ListAVDs(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "AVDs:")
		for _, a := range avds {
			fmt.Fprintf(c.App.Writer, "  %s\n", a)
		}
	}

	entries, err := adbBridge.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := adbBridge.RequireDevice(ctx, "")
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(c.App.Writer)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Serial", "State", "Model", "Android", "SDK", "Type", "Battery"})
	for _, e := range entries {
		row := table.Row{e.Serial, e.State, "-", "-", "-", "-", "-"}
		if e.State == "device" {
			row = deviceRow(ctx, e)
		}
		tw.AppendRow(row)
	}
	tw.Render()
	return nil
}

func deviceRow(ctx context.Context, e device.Entry) table.Row {
	d := device.New(e.Serial, adbBridge.Runner)
	info, _ := d.Info(ctx)
	kind := "physical"
	if info.IsEmulator {
		kind = "emulator"
	}
	battery, err := d.BatteryLevel(ctx)
	if err != nil {
		battery = "-"
	}
	return table.Row{
		e.Serial, e.State,
		orDefault(info.Model, "-"),
		orDefault(info.Release, "-"),
		orDefault(info.SDK, "-"),
		kind, battery,
	}
}
