package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/whiteswan/mobile-e2e/pkg/config"
	"github.com/whiteswan/mobile-e2e/pkg/device"
	"github.com/whiteswan/mobile-e2e/pkg/driver/mock"
	"github.com/whiteswan/mobile-e2e/pkg/emulator"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

func envMap(m map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestResolveOutputDir(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	dir, err := resolveOutputDir("./my-reports", false, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("my-reports", "2024-01-15_10-30-00"), dir)

	dir, err = resolveOutputDir("./my-reports", true, now)
	require.NoError(t, err)
	assert.Equal(t, "my-reports", dir)

	_, err = resolveOutputDir("", true, now)
	assert.Error(t, err)
}

func TestResolveOutputDir_DefaultsToHome(t *testing.T) {
	config.ResetHome()
	t.Cleanup(config.ResetHome)
	t.Setenv("WS_E2E_HOME", "/opt/ws-e2e")

	dir, err := resolveOutputDir("", false, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/opt/ws-e2e", "reports", "2024-01-15_10-30-00"), dir)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws-e2e.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
appPackage: com.fin.whiteswan.file
appiumUrl: http://file:4723
udid: file-serial
recovery:
  strategy: restart
`), 0o644))

	env := envMap(map[string]string{
		"APPIUM_URL": "http://env:4723",
		"UDID":       "env-serial",
	})

	cfg, err := Settings{ConfigPath: path, UDID: "flag-serial"}.LoadConfig(env)
	require.NoError(t, err)
	assert.Equal(t, "com.fin.whiteswan.file", cfg.AppPackage, "file value kept")
	assert.Equal(t, "http://env:4723", cfg.AppiumURL, "env overrides file")
	assert.Equal(t, "flag-serial", cfg.UDID, "flag overrides env")
	assert.Equal(t, "restart", cfg.Recovery.Strategy)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := Settings{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}.LoadConfig(envMap(nil))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "ws-e2e.yaml")
	require.NoError(t, os.WriteFile(path, []byte("appPackage: x\n"), 0o644))
	_, err = Settings{ConfigPath: path}.LoadConfig(envMap(map[string]string{"RECOVER_WAIT_MS": "soon"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECOVER_WAIT_MS")
}

func TestSettingsFrom_ReadsGlobalFlags(t *testing.T) {
	var got Settings
	app := newApp()
	app.Commands = append(app.Commands, &cli.Command{
		Name: "inspect",
		Action: func(c *cli.Context) error {
			got = settingsFrom(c)
			return nil
		},
	})

	err := app.Run([]string{"ws-e2e", "--udid", "R58M", "-o", "out", "--flatten", "--verbose", "inspect"})
	require.NoError(t, err)
	assert.Equal(t, "R58M", got.UDID)
	assert.Equal(t, "out", got.Output)
	assert.True(t, got.Flatten)
	assert.True(t, got.Verbose)
	assert.Empty(t, got.ConfigPath)
}

func TestSelectTarget(t *testing.T) {
	emu := device.Entry{Serial: "emulator-5556", State: "device"}
	phone := device.Entry{Serial: "R58M123", State: "device"}
	offline := device.Entry{Serial: "R58M999", State: "unauthorized"}

	tests := []struct {
		name     string
		entries  []device.Entry
		override string
		want     Target
	}{
		{"nothing attached", nil, "", Target{Serial: "emulator-5554", Reason: "no_physical"}},
		{"emulator only", []device.Entry{emu}, "", Target{Serial: "emulator-5556", Reason: "no_physical"}},
		{"physical only", []device.Entry{phone}, "", Target{Serial: "R58M123", IsReal: true, Reason: "only_physical_present"}},
		{"physical preferred", []device.Entry{emu, phone}, "", Target{Serial: "R58M123", IsReal: true, Reason: "both_present_pref_physical"}},
		{"unauthorized ignored", []device.Entry{offline, emu}, "", Target{Serial: "emulator-5556", Reason: "no_physical"}},
		{"explicit emulator", []device.Entry{phone}, "emulator-5554", Target{Serial: "emulator-5554", Reason: "explicit_udid"}},
		{"explicit phone", nil, "R58M777", Target{Serial: "R58M777", IsReal: true, Reason: "explicit_udid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectTarget(tt.entries, tt.override))
		})
	}
}

func TestBuildCapabilities_Emulator(t *testing.T) {
	cfg := config.Default()
	cfg.APKPath = "/builds/app.apk"

	caps := BuildCapabilities(cfg, Target{Serial: "emulator-5554", PlatformVersion: "14"}, CapabilityEnv{})

	assert.Equal(t, "Android", caps["platformName"])
	assert.Equal(t, "UiAutomator2", caps["appium:automationName"])
	assert.Equal(t, "emulator-5554", caps["appium:udid"])
	assert.Equal(t, "emulator-5554", caps["appium:deviceName"])
	assert.Equal(t, "14", caps["appium:platformVersion"])
	assert.Equal(t, "/builds/app.apk", caps["appium:app"])
	assert.Equal(t, config.DefaultAppPackage, caps["appium:appPackage"])
	assert.Equal(t, config.DefaultMainActivity, caps["appium:appActivity"])
	assert.Equal(t, config.DefaultMainActivity, caps["appium:appWaitActivity"])
	assert.Equal(t, true, caps["appium:unicodeKeyboard"])
	assert.Equal(t, true, caps["appium:noReset"])
	assert.Equal(t, false, caps["appium:fullReset"])
	assert.Equal(t, 120, caps["appium:newCommandTimeout"])
}

func TestBuildCapabilities_RealDevice(t *testing.T) {
	cfg := config.Default()
	cfg.APKPath = filepath.Join(t.TempDir(), "missing.apk")
	cfg.MainActivity = ".ui.LaunchActivity"

	caps := BuildCapabilities(cfg, Target{Serial: "R58M123", IsReal: true}, CapabilityEnv{FullReset: true})

	assert.Equal(t, "real_device", caps["appium:deviceName"])
	assert.Equal(t, ".ui.LaunchActivity", caps["appium:appActivity"])
	assert.NotContains(t, caps, "appium:app", "missing APK is not sent")
	assert.NotContains(t, caps, "appium:platformVersion")
	assert.NotContains(t, caps, "appium:appWaitActivity")
	assert.Equal(t, false, caps["appium:unicodeKeyboard"])
	assert.Equal(t, false, caps["appium:resetKeyboard"])
	assert.Equal(t, true, caps["appium:fullReset"])
	assert.Equal(t, false, caps["appium:noReset"])
}

func TestBuildCapabilities_CIAndOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.APKPath = "/ci/app.apk"
	cfg.Capabilities = map[string]interface{}{"appium:newCommandTimeout": 300}

	caps := BuildCapabilities(cfg, Target{Serial: "emulator-5554"}, CapabilityEnv{CI: true, AVD: "Pixel_7", DeviceName: "ci-emu"})

	assert.Equal(t, "/ci/app.apk", caps["appium:app"])
	assert.Equal(t, "Pixel_7", caps["appium:avd"])
	assert.Equal(t, "ci-emu", caps["appium:deviceName"])
	assert.NotContains(t, caps, "appium:appPackage")
	assert.Equal(t, 300, caps["appium:newCommandTimeout"], "config capabilities win")
}

func TestCapabilityEnv(t *testing.T) {
	env := capabilityEnv(envMap(map[string]string{
		"JENKINS_URL":        "http://jenkins",
		"FULL_RESET":         "true",
		"FORCED_UNICODE_IME": "yes",
		"DEVICE_NAME":        "pixel",
	}))
	assert.True(t, env.CI)
	assert.True(t, env.FullReset)
	assert.False(t, env.ForceUnicodeIME, "only the literal true enables it")
	assert.Equal(t, "pixel", env.DeviceName)
}

func TestReportDevice_LogsUnreadableProperties(t *testing.T) {
	var con bytes.Buffer
	logger.SetConsole(&con, logger.LevelWarn)
	t.Cleanup(func() { logger.SetConsole(nil, logger.LevelWarn) })

	runner := mock.NewRunner().
		On("adb -s R58M shell getprop ro.product.model", "", errors.New("device offline")).
		On("adb -s R58M shell getprop ro.build.version.release", "", errors.New("device offline"))
	dev := device.New("R58M", runner)

	got := reportDevice(context.Background(), dev, Target{Serial: "R58M", IsReal: true, PlatformVersion: "13"})
	assert.Equal(t, "unknown", got.Name)
	assert.Equal(t, "13", got.OSVersion)
	assert.False(t, got.IsEmulator)
	assert.Contains(t, con.String(), "device info for R58M")

	ok := mock.NewRunner().
		On("adb -s emulator-5554 shell getprop ro.product.model", "sdk_gphone64_x86_64\n", nil).
		On("adb -s emulator-5554 shell getprop ro.build.version.release", "14\n", nil)
	got = reportDevice(context.Background(), device.New("emulator-5554", ok), Target{Serial: "emulator-5554"})
	assert.Equal(t, "sdk_gphone64_x86_64", got.Name)
	assert.Equal(t, "14", got.OSVersion)
	assert.True(t, got.IsEmulator)
}

func TestReportEnvironment(t *testing.T) {
	cfg := config.Default()
	env := reportEnvironment(cfg, Target{Serial: "R58M123", IsReal: true}, CapabilityEnv{},
		envMap(map[string]string{"BUILD_NUMBER": "412"}))

	assert.Equal(t, "Real Device", env["Device"])
	assert.Equal(t, "Local (Real Device)", env["Environment"])
	assert.Equal(t, "R58M123", env["UDID"])
	assert.Equal(t, "412", env["Build Number"])
	assert.Equal(t, "1.0.0", env["App Version"])
	assert.Equal(t, "auto", env["Platform Version"])
	assert.Equal(t, "clear-data", env["Recovery"])
}

func withADB(t *testing.T, runner *mock.Runner) {
	prev := adbBridge
	adbBridge = device.ADB{Runner: runner}
	t.Cleanup(func() { adbBridge = prev })
}

func TestDevicesCommand(t *testing.T) {
	runner := mock.NewRunner().
		On("adb devices", "List of devices attached\nemulator-5554\tdevice\nR58M999\tunauthorized\n\n", nil).
		On("adb -s emulator-5554 shell getprop ro.product.model", "sdk_gphone64_x86_64\n", nil).
		On("adb -s emulator-5554 shell getprop ro.build.version.release", "14\n", nil).
		On("adb -s emulator-5554 shell dumpsys battery", "Current Battery Service state:\n  level: 87\n", nil)
	withADB(t, runner)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"ws-e2e", "--no-ansi", "devices"}))

	text := out.String()
	assert.Contains(t, text, "sdk_gphone64_x86_64")
	assert.Contains(t, text, "emulator")
	assert.Contains(t, text, "87%")
	assert.Contains(t, text, "R58M999")
	assert.Contains(t, text, "unauthorized")
	assert.Empty(t, runner.Matching("-s R58M999"), "unauthorized devices are not queried")
}

func TestDevicesCommand_NoDevices(t *testing.T) {
	withADB(t, mock.NewRunner().On("adb devices", "List of devices attached\n\n", nil))

	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"ws-e2e", "devices"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "No Android devices"))
}

func TestRunCommand_UnknownScenario(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"ws-e2e", "run", "--only", "no such scenario"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such scenario")
}

type stubLauncher struct{ launched []string }

func (l *stubLauncher) Launch(_ context.Context, _ string, args ...string) (emulator.Process, error) {
	l.launched = append(l.launched, args...)
	return stubProcess{}, nil
}

type stubProcess struct{}

func (stubProcess) Kill() error { return nil }

func withEmulator(t *testing.T, runner *mock.Runner) *stubLauncher {
	l := &stubLauncher{}
	prev := newEmulatorManager
	newEmulatorManager = func() *emulator.Manager {
		return &emulator.Manager{
			Binary:   "/sdk/emulator/emulator",
			Runner:   runner,
			Launcher: l,
			Clock:    mock.NewClock(),
		}
	}
	t.Cleanup(func() { newEmulatorManager = prev })
	return l
}

func TestEnsureEmulator_SkipsWhenAttached(t *testing.T) {
	runner := mock.NewRunner().On("adb devices", "List of devices attached\nR58M123\tdevice\n", nil)
	withADB(t, runner)
	l := withEmulator(t, runner)

	inst, err := ensureEmulator(context.Background(), &bytes.Buffer{}, "Pixel_7", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, inst)
	assert.Empty(t, l.launched)
}

func TestEnsureEmulator_Boots(t *testing.T) {
	runner := mock.NewRunner().
		On("adb devices", "List of devices attached\n\n", nil).
		On("adb -s emulator-5554 get-state", "device\n", nil).
		On("adb -s emulator-5554 shell getprop sys.boot_completed", "1\n", nil)
	withADB(t, runner)
	l := withEmulator(t, runner)

	var out bytes.Buffer
	inst, err := ensureEmulator(context.Background(), &out, "Pixel_7", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "emulator-5554", inst.Serial)
	assert.Contains(t, l.launched, "Pixel_7")
	assert.Contains(t, out.String(), "Emulator started: emulator-5554")
}

func TestDevicesCommand_ListsAVDs(t *testing.T) {
	runner := mock.NewRunner().
		On("adb devices", "List of devices attached\nemulator-5554\toffline\n\n", nil).
		On("/sdk/emulator/emulator -list-avds", "Pixel_7_API_34\nSmall_Phone\n", nil)
	withADB(t, runner)
	withEmulator(t, runner)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"ws-e2e", "--no-ansi", "devices", "--avds"}))

	assert.Contains(t, out.String(), "Pixel_7_API_34")
	assert.Contains(t, out.String(), "Small_Phone")
	assert.Contains(t, out.String(), "offline")
}
