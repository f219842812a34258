// Package emulator boots and shuts down Android Virtual Devices for runs
// that start without an attached device.
package emulator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/device"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// DefaultConsolePort is the console port of the first emulator; its serial
// is emulator-5554.
const DefaultConsolePort = 5554

// Process is a launched emulator.
type Process interface {
	Kill() error
}

// Launcher starts the emulator binary in the background.
type Launcher interface {
	Launch(ctx context.Context, binary string, args ...string) (Process, error)
}

// ExecLauncher launches with os/exec. The emulator outlives ctx; it is
// stopped through Shutdown.
type ExecLauncher struct{}

type execProcess struct{ cmd *exec.Cmd }

func (p execProcess) Kill() error { return p.cmd.Process.Kill() }

// Launch implements Launcher.
func (ExecLauncher) Launch(_ context.Context, binary string, args ...string) (Process, error) {
	cmd := exec.Command(binary, args...) //#nosec G204 -- emulator binary resolved from the SDK
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start emulator process: %w", err)
	}
	logger.Info("[emulator] process started (PID: %d)", cmd.Process.Pid)
	return execProcess{cmd: cmd}, nil
}

// Instance is an emulator booted by this process.
type Instance struct {
	AVD          string
	Serial       string
	ConsolePort  int
	BootDuration time.Duration

	process Process
}

// BootStatus is one readiness probe.
type BootStatus struct {
	StateReady     bool // adb get-state == "device"
	BootCompleted  bool // sys.boot_completed == "1"
	PackageManager bool // pm get-max-users succeeds
}

// Ready reports whether every probe passed.
func (s BootStatus) Ready() bool {
	return s.StateReady && s.BootCompleted && s.PackageManager
}

// Manager boots and stops emulators.
type Manager struct {
	Binary   string // emulator binary; FindBinary() when empty
	ADBPath  string // "adb" when empty
	Runner   device.Runner
	Launcher Launcher
	Clock    core.Clock

	StatePoll time.Duration
	BootPoll  time.Duration
}

// NewManager creates a Manager backed by os/exec.
func NewManager() *Manager {
	return &Manager{
		Runner:    device.ExecRunner{},
		Launcher:  ExecLauncher{},
		Clock:     core.SystemClock,
		StatePoll: 500 * time.Millisecond,
		BootPoll:  time.Second,
	}
}

// FindBinary locates the emulator binary under the SDK, then on PATH.
func FindBinary() (string, error) {
	for _, key := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		home := os.Getenv(key)
		if home == "" {
			continue
		}
		for _, rel := range []string{"emulator/emulator", "tools/emulator"} {
			p := filepath.Join(home, filepath.FromSlash(rel))
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	if p, err := exec.LookPath("emulator"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("emulator binary not found; set ANDROID_HOME or add emulator to PATH")
}

func (m *Manager) binary() (string, error) {
	if m.Binary != "" {
		return m.Binary, nil
	}
	return FindBinary()
}

func (m *Manager) adb() string {
	if m.ADBPath == "" {
		return "adb"
	}
	return m.ADBPath
}

// ListAVDs returns the names printed by `emulator -list-avds`.
func (m *Manager) ListAVDs(ctx context.Context) ([]string, error) {
	bin, err := m.binary()
	if err != nil {
		return nil, err
	}
	out, err := m.Runner.Run(ctx, bin, "-list-avds")
	if err != nil {
		return nil, fmt.Errorf("failed to list AVDs: %w", err)
	}
	var avds []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		// The binary prints INFO/WARNING lines on some SDK versions.
		if line == "" || strings.Contains(line, "|") || strings.HasPrefix(line, "INFO") {
			continue
		}
		avds = append(avds, line)
	}
	return avds, nil
}

// CheckBootStatus probes the emulator in stages and stops at the first
// stage that is not ready.
func (m *Manager) CheckBootStatus(ctx context.Context, serial string) BootStatus {
	var s BootStatus
	out, err := m.Runner.Run(ctx, m.adb(), "-s", serial, "get-state")
	s.StateReady = err == nil && strings.TrimSpace(string(out)) == "device"
	if !s.StateReady {
		return s
	}
	out, err = m.Runner.Run(ctx, m.adb(), "-s", serial, "shell", "getprop", "sys.boot_completed")
	s.BootCompleted = err == nil && strings.TrimSpace(string(out)) == "1"
	if !s.BootCompleted {
		return s
	}
	_, err = m.Runner.Run(ctx, m.adb(), "-s", serial, "shell", "pm", "get-max-users")
	s.PackageManager = err == nil
	return s
}
