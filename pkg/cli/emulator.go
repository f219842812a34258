package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/whiteswan/mobile-e2e/pkg/emulator"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

var emulatorFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "start-emulator",
		Usage:   "Boot this AVD when no device is attached",
		EnvVars: []string{"WS_E2E_START_EMULATOR"},
	},
	&cli.DurationFlag{
		Name:  "boot-timeout",
		Usage: "How long to wait for the emulator to boot",
		Value: 3 * time.Minute,
	},
	&cli.BoolFlag{
		Name:  "shutdown-after",
		Usage: "Shut down an emulator started by this run when it ends",
	},
}

// newEmulatorManager is swapped in tests.
var newEmulatorManager = func() *emulator.Manager {
	m := emulator.NewManager()
	if adbBridge.Runner != nil {
		m.Runner = adbBridge.Runner
	}
	return m
}

// ensureEmulator boots avd unless a device is already attached. It returns
// nil when nothing was started.
func ensureEmulator(ctx context.Context, out io.Writer, avd string, timeout time.Duration) (*emulator.Instance, error) {
	entries, err := adbBridge.ListDevices(ctx)
	if err == nil {
		for _, e := range entries {
			if e.State == "device" {
				logger.Info("[emulator] %s already attached, not starting %s", e.Serial, avd)
				return nil, nil
			}
		}
	}

	printSetupStep(out, fmt.Sprintf("Starting emulator: %s", avd))
	inst, err := newEmulatorManager().Boot(ctx, avd, emulator.DefaultConsolePort, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to start emulator %s: %w", avd, err)
	}
	printSetupSuccess(out, fmt.Sprintf("Emulator started: %s (%s)", inst.Serial, inst.BootDuration.Round(time.Second)))
	return inst, nil
}

func shutdownEmulator(inst *emulator.Instance) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := newEmulatorManager().Shutdown(ctx, inst, 30*time.Second); err != nil {
		logger.Warn("[emulator] shutdown %s: %v", inst.Serial, err)
	}
}
