// Package device provides the adb bridge for operations the automation
// session does not expose: force-stop, pm clear, explicit activity starts,
// log capture and memory/battery introspection.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/acarl005/stripansi"

	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. On failure the error carries stderr, or stdout
// when stderr is empty.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, strings.TrimSpace(errMsg))
	}
	return stdout.Bytes(), nil
}

// Entry is one line of `adb devices`.
type Entry struct {
	Serial string
	State  string // device, offline, unauthorized
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	Release    string // Android version, e.g. "14"
	SDK        string
	Brand      string
	IsEmulator bool
}

// NoDevicesError is returned when no device is in the "device" state.
type NoDevicesError struct {
	Message     string
	Suggestions []string
}

func (e *NoDevicesError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if len(e.Suggestions) > 0 {
		sb.WriteString("\n\nOptions:")
		for _, s := range e.Suggestions {
			sb.WriteString("\n  - ")
			sb.WriteString(s)
		}
	}
	return sb.String()
}

// ADB locates adb binaries and resolves which device to talk to.
type ADB struct {
	Path   string // adb binary; "adb" when empty
	Runner Runner // ExecRunner when nil
}

func (a ADB) path() string {
	if a.Path == "" {
		return "adb"
	}
	return a.Path
}

func (a ADB) runner() Runner {
	if a.Runner == nil {
		return ExecRunner{}
	}
	return a.Runner
}

// ListDevices parses `adb devices`.
func (a ADB) ListDevices(ctx context.Context) ([]Entry, error) {
	out, err := a.runner().Run(ctx, a.path(), "devices")
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			entries = append(entries, Entry{Serial: parts[0], State: parts[1]})
		}
	}
	return entries, nil
}

// ResolveSerial returns override when set, else the first attached device
// in the "device" state, else "" (commands then run without -s).
func (a ADB) ResolveSerial(ctx context.Context, override string) string {
	if override != "" {
		return override
	}
	entries, err := a.ListDevices(ctx)
	if err != nil {
		logger.Debug("[device] autodetect failed: %v", err)
		return ""
	}
	for _, e := range entries {
		if e.State == "device" {
			return e.Serial
		}
	}
	return ""
}

// Device returns a bridge scoped to the resolved serial.
func (a ADB) Device(ctx context.Context, override string) *AndroidDevice {
	return &AndroidDevice{
		serial:  a.ResolveSerial(ctx, override),
		adbPath: a.path(),
		runner:  a.runner(),
	}
}

// RequireDevice is like Device but fails when nothing is attached.
func (a ADB) RequireDevice(ctx context.Context, override string) (*AndroidDevice, error) {
	d := a.Device(ctx, override)
	if d.serial == "" {
		return nil, &NoDevicesError{
			Message: "No Android devices or emulators found",
			Suggestions: []string{
				"Connect a physical device via USB and accept the debugging prompt",
				"Start an emulator: emulator -avd <name>",
				"Set UDID to target a specific serial",
			},
		}
	}
	return d, nil
}

// AndroidDevice runs adb commands scoped to one serial.
type AndroidDevice struct {
	serial  string
	adbPath string
	runner  Runner
}

// New creates a device bridge for an already-known serial.
func New(serial string, runner Runner) *AndroidDevice {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &AndroidDevice{serial: serial, adbPath: "adb", runner: runner}
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device. ANSI colour codes are
// stripped from the output.
func (d *AndroidDevice) Shell(ctx context.Context, args ...string) (string, error) {
	return d.adb(ctx, append([]string{"shell"}, args...)...)
}

// ForceStop kills the app process.
func (d *AndroidDevice) ForceStop(ctx context.Context, pkg string) error {
	_, err := d.Shell(ctx, "am", "force-stop", pkg)
	return err
}

// ClearData wipes the app's persisted data.
func (d *AndroidDevice) ClearData(ctx context.Context, pkg string) error {
	out, err := d.Shell(ctx, "pm", "clear", pkg)
	if err != nil {
		return err
	}
	if strings.Contains(out, "Failed") {
		return fmt.Errorf("pm clear %s: %s", pkg, strings.TrimSpace(out))
	}
	return nil
}

// StartActivity starts an explicit component ("pkg/pkg.MainActivity").
// am exits 0 on some failures, so its output is checked too.
func (d *AndroidDevice) StartActivity(ctx context.Context, component string) error {
	out, err := d.Shell(ctx, "am", "start", "-n", component)
	if err != nil {
		return err
	}
	if strings.Contains(out, "Error:") {
		return fmt.Errorf("am start -n %s: %s", component, strings.TrimSpace(out))
	}
	return nil
}

// Install installs an APK on the device.
func (d *AndroidDevice) Install(ctx context.Context, apkPath string) error {
	_, err := d.adb(ctx, "install", "-r", "-g", apkPath)
	return err
}

// Uninstall removes a package from the device.
func (d *AndroidDevice) Uninstall(ctx context.Context, pkg string) error {
	_, err := d.adb(ctx, "uninstall", pkg)
	return err
}

// IsInstalled checks if a package is installed.
func (d *AndroidDevice) IsInstalled(ctx context.Context, pkg string) bool {
	out, err := d.Shell(ctx, "pm", "list", "packages", pkg)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true
		}
	}
	return false
}

// Logcat dumps the last n log lines. A non-empty pid limits output to
// that process.
func (d *AndroidDevice) Logcat(ctx context.Context, n int, pid string) (string, error) {
	args := []string{"logcat", "-d", "-t", fmt.Sprintf("%d", n)}
	if pid != "" {
		args = append(args, "--pid="+pid)
	}
	return d.Shell(ctx, args...)
}

// ClearLogcat clears the device log buffer.
func (d *AndroidDevice) ClearLogcat(ctx context.Context) error {
	_, err := d.Shell(ctx, "logcat", "-c")
	return err
}

// Pidof returns the app's process ID, or "" when it isn't running.
func (d *AndroidDevice) Pidof(ctx context.Context, pkg string) (string, error) {
	out, err := d.Shell(ctx, "pidof", pkg)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

// Meminfo returns `dumpsys meminfo <pkg>`.
func (d *AndroidDevice) Meminfo(ctx context.Context, pkg string) (string, error) {
	return d.Shell(ctx, "dumpsys", "meminfo", pkg)
}

// SystemMeminfo returns the first lines of /proc/meminfo.
func (d *AndroidDevice) SystemMeminfo(ctx context.Context) (string, error) {
	return d.Shell(ctx, "head", "-n", "3", "/proc/meminfo")
}

var batteryLevel = regexp.MustCompile(`level:\s*(\d+)`)

// BatteryLevel returns the battery percentage from `dumpsys battery`.
func (d *AndroidDevice) BatteryLevel(ctx context.Context) (string, error) {
	out, err := d.Shell(ctx, "dumpsys", "battery")
	if err != nil {
		return "", err
	}
	m := batteryLevel.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("battery level not reported")
	}
	return m[1] + "%", nil
}

// Getprop returns a system property.
func (d *AndroidDevice) Getprop(ctx context.Context, name string) (string, error) {
	out, err := d.Shell(ctx, "getprop", name)
	return strings.TrimSpace(out), err
}

// Info returns device information. Model and release failures are
// reported in the error; the other properties are left empty when they
// cannot be read. The returned info is usable either way.
func (d *AndroidDevice) Info(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial}

	var errModel, errRelease error
	info.Model, errModel = d.Getprop(ctx, "ro.product.model")
	info.Release, errRelease = d.Getprop(ctx, "ro.build.version.release")
	info.SDK, _ = d.Getprop(ctx, "ro.build.version.sdk")
	info.Brand, _ = d.Getprop(ctx, "ro.product.brand")

	qemu, _ := d.Getprop(ctx, "ro.kernel.qemu")
	info.IsEmulator = qemu == "1" || strings.HasPrefix(d.serial, "emulator-")

	return info, errors.Join(errModel, errRelease)
}

// adb executes an ADB command.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	out, err := d.runner.Run(ctx, d.adbPath, cmdArgs...)
	if err != nil {
		return "", fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return stripansi.Strip(string(out)), nil
}
