package emulator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// minBootWait is the least time left for boot completion after the device
// state appeared.
const minBootWait = 30 * time.Second

// Boot launches avd on consolePort and waits until it is fully usable or
// timeout elapses. A failed boot kills the process.
func (m *Manager) Boot(ctx context.Context, avd string, consolePort int, timeout time.Duration) (*Instance, error) {
	bin, err := m.binary()
	if err != nil {
		return nil, err
	}
	serial := fmt.Sprintf("emulator-%d", consolePort)
	start := m.Clock.Now()
	logger.Info("[emulator] starting %s on port %d (timeout %s)", avd, consolePort, timeout)

	proc, err := m.Launcher.Launch(ctx, bin,
		"-avd", avd,
		"-port", strconv.Itoa(consolePort),
		"-netdelay", "none",
		"-netspeed", "full",
		"-no-boot-anim",
		"-no-snapshot-load",
	)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*Instance, error) {
		if kerr := proc.Kill(); kerr != nil {
			logger.Warn("[emulator] kill %s: %v", serial, kerr)
		}
		return nil, err
	}

	stateWait := 60 * time.Second
	if timeout < stateWait {
		stateWait = timeout
	}
	if err := m.poll(ctx, stateWait, m.StatePoll, func() bool {
		return m.CheckBootStatus(ctx, serial).StateReady
	}); err != nil {
		return fail(fmt.Errorf("%s did not reach device state within %s: %w", serial, stateWait, err))
	}

	remaining := timeout - m.Clock.Now().Sub(start)
	if remaining < minBootWait {
		remaining = minBootWait
	}
	var last BootStatus
	if err := m.poll(ctx, remaining, m.BootPoll, func() bool {
		last = m.CheckBootStatus(ctx, serial)
		logger.Debug("[emulator] %s boot status %+v", serial, last)
		return last.Ready()
	}); err != nil {
		return fail(fmt.Errorf("emulator boot timeout after %s (state:%t boot:%t pm:%t): %w",
			timeout, last.StateReady, last.BootCompleted, last.PackageManager, err))
	}

	inst := &Instance{
		AVD:          avd,
		Serial:       serial,
		ConsolePort:  consolePort,
		BootDuration: m.Clock.Now().Sub(start),
		process:      proc,
	}
	logger.Info("[emulator] %s booted as %s in %s", avd, serial, inst.BootDuration)
	return inst, nil
}

// Shutdown asks the emulator to exit through the console and kills the
// process when it is still attached after timeout.
func (m *Manager) Shutdown(ctx context.Context, inst *Instance, timeout time.Duration) error {
	logger.Info("[emulator] shutting down %s", inst.Serial)
	if _, err := m.Runner.Run(ctx, m.adb(), "-s", inst.Serial, "emu", "kill"); err != nil {
		logger.Warn("[emulator] adb emu kill %s: %v", inst.Serial, err)
	}

	err := m.poll(ctx, timeout, m.BootPoll, func() bool {
		_, err := m.Runner.Run(ctx, m.adb(), "-s", inst.Serial, "get-state")
		return err != nil
	})
	if err == nil {
		logger.Info("[emulator] %s stopped", inst.Serial)
		return nil
	}

	logger.Warn("[emulator] %s still attached after %s, killing process", inst.Serial, timeout)
	if inst.process == nil {
		return fmt.Errorf("emulator %s did not stop and has no process handle", inst.Serial)
	}
	return inst.process.Kill()
}

// poll calls done every interval until it reports true or timeout elapses.
func (m *Manager) poll(ctx context.Context, timeout, interval time.Duration, done func() bool) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	deadline := m.Clock.Now().Add(timeout)
	for {
		if done() {
			return nil
		}
		if !m.Clock.Now().Before(deadline) {
			return fmt.Errorf("timed out after %s", timeout)
		}
		if err := m.Clock.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
