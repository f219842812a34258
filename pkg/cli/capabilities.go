package cli

import (
	"context"
	"os"
	"strings"

	"github.com/whiteswan/mobile-e2e/pkg/config"
	"github.com/whiteswan/mobile-e2e/pkg/device"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

const defaultEmulatorSerial = "emulator-5554"

// Target is the device a session is opened against.
type Target struct {
	Serial          string
	IsReal          bool
	Reason          string
	PlatformVersion string
}

// SelectTarget picks the device to drive. An explicit serial wins; otherwise
// a physical device is preferred over emulators, and the default emulator
// serial is assumed when adb reports nothing usable.
func SelectTarget(entries []device.Entry, override string) Target {
	var physical, emulators []string
	for _, e := range entries {
		if e.State != "device" {
			continue
		}
		if strings.HasPrefix(e.Serial, "emulator-") {
			emulators = append(emulators, e.Serial)
		} else {
			physical = append(physical, e.Serial)
		}
	}

	t := Target{Serial: override}
	switch {
	case len(physical) > 0 && len(emulators) == 0:
		t.IsReal, t.Reason = true, "only_physical_present"
	case len(physical) > 0:
		t.IsReal, t.Reason = true, "both_present_pref_physical"
	default:
		t.Reason = "no_physical"
	}

	if override != "" {
		t.IsReal = !strings.HasPrefix(override, "emulator-")
		t.Reason = "explicit_udid"
		return t
	}
	switch {
	case t.IsReal:
		t.Serial = physical[0]
	case len(emulators) > 0:
		t.Serial = emulators[0]
	default:
		t.Serial = defaultEmulatorSerial
	}
	return t
}

// detectTarget lists adb devices and fills in the platform version. adb
// failures fall back to the default emulator.
func detectTarget(ctx context.Context, adb device.ADB, override string) Target {
	entries, err := adb.ListDevices(ctx)
	if err != nil {
		logger.Warn("[device-detect] adb devices failed, assuming emulator: %v", err)
		entries = nil
	}
	t := SelectTarget(entries, override)
	if err != nil && override == "" {
		t.Reason = "adb_error"
	}

	t.PlatformVersion = os.Getenv("PLATFORM_VERSION")
	if t.PlatformVersion == "" {
		t.PlatformVersion, _ = device.New(t.Serial, adb.Runner).Getprop(ctx, "ro.build.version.release")
	}
	logger.Info("[capabilities] target serial=%s real=%t reason=%s version=%s",
		t.Serial, t.IsReal, t.Reason, t.PlatformVersion)
	return t
}

// CapabilityEnv holds the environment switches that shape capabilities.
type CapabilityEnv struct {
	CI              bool
	FullReset       bool
	ForceUnicodeIME bool
	DeviceName      string
	AppWaitActivity string
	AVD             string
}

// capabilityEnv reads the switches through lookup.
func capabilityEnv(lookup config.LookupFunc) CapabilityEnv {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	return CapabilityEnv{
		CI:              get("CI") != "" || get("JENKINS_URL") != "",
		FullReset:       get("FULL_RESET") == "true",
		ForceUnicodeIME: get("FORCED_UNICODE_IME") == "true",
		DeviceName:      get("DEVICE_NAME"),
		AppWaitActivity: get("APP_WAIT_ACTIVITY"),
		AVD:             get("ANDROID_AVD"),
	}
}

// BuildCapabilities assembles the W3C capabilities for the session.
// Entries from cfg.Capabilities are applied last and win.
func BuildCapabilities(cfg *config.Config, t Target, env CapabilityEnv) map[string]interface{} {
	deviceName := env.DeviceName
	if deviceName == "" {
		deviceName = defaultEmulatorSerial
		if t.IsReal {
			deviceName = "real_device"
		}
	}

	caps := map[string]interface{}{
		"platformName":                      "Android",
		"appium:automationName":             "UiAutomator2",
		"appium:autoGrantPermissions":       true,
		"appium:ignoreHiddenApiPolicyError": true,
		"appium:disableWindowAnimation":     true,
		"appium:deviceName":                 deviceName,
		"appium:udid":                       t.Serial,
		"appium:newCommandTimeout":          120,
		"appium:adbExecTimeout":             60000,
		"appium:unicodeKeyboard":            env.ForceUnicodeIME || !t.IsReal,
		"appium:resetKeyboard":              !t.IsReal,
		"appium:noReset":                    !env.FullReset,
		"appium:fullReset":                  env.FullReset,
	}
	if t.PlatformVersion != "" {
		caps["appium:platformVersion"] = t.PlatformVersion
	}

	switch {
	case env.CI:
		if cfg.APKPath != "" {
			caps["appium:app"] = cfg.APKPath
		}
		if env.AVD != "" {
			caps["appium:avd"] = env.AVD
		}
	case t.IsReal:
		caps["appium:appPackage"] = cfg.AppPackage
		caps["appium:appActivity"] = cfg.StartActivity()
		if apkExists(cfg.APKPath) {
			caps["appium:app"] = cfg.APKPath
		}
	default:
		if cfg.APKPath != "" {
			caps["appium:app"] = cfg.APKPath
		}
		waitActivity := env.AppWaitActivity
		if waitActivity == "" {
			waitActivity = config.DefaultMainActivity
		}
		caps["appium:appWaitActivity"] = waitActivity
		caps["appium:appPackage"] = cfg.AppPackage
		caps["appium:appActivity"] = cfg.StartActivity()
	}

	for k, v := range cfg.Capabilities {
		caps[k] = v
	}
	return caps
}

func apkExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
