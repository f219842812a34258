package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ws-e2e.yaml")

	content := `
appiumUrl: http://10.0.0.5:4723
appPackage: com.fin.whiteswan.dev
apkPath: build/app-release.apk
udid: emulator-5556
mainActivity: .MainActivity
recovery:
  strategy: reinstall
  waitMs: 1500
prepare:
  actionButtonTimeoutMs: 4000
artifacts:
  captureOnSuccess: true
owner:
  email: owner@example.com
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:4723", cfg.AppiumURL)
	assert.Equal(t, "com.fin.whiteswan.dev", cfg.AppPackage)
	assert.Equal(t, "build/app-release.apk", cfg.APKPath)
	assert.Equal(t, "emulator-5556", cfg.UDID)
	assert.Equal(t, ".MainActivity", cfg.StartActivity())
	assert.Equal(t, "reinstall", cfg.Recovery.Strategy)
	assert.Equal(t, 1500, cfg.Recovery.WaitMs)
	assert.Equal(t, 4000, cfg.Prepare.ActionButtonTimeoutMs)
	assert.True(t, cfg.Artifacts.CaptureOnSuccess)
	assert.Equal(t, "owner@example.com", cfg.Owner.Email)

	// Unset fields keep their defaults
	assert.True(t, cfg.Recovery.Enabled)
	assert.Equal(t, 1000, cfg.Prepare.InitialPauseMs)
	assert.True(t, cfg.Prepare.WaitActionButton)
	assert.True(t, cfg.Artifacts.EnhancedDebug)
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/ws-e2e.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ws-e2e.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte(`recovery: [invalid yaml`), 0644))

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ws-e2e.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte(``), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromDir_PrefersYamlOverYml(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ws-e2e.yaml"), []byte(`appPackage: from.yaml`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ws-e2e.yml"), []byte(`appPackage: from.yml`), 0644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "from.yaml", cfg.AppPackage)
}

func TestLoadFromDir_ConfigYml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ws-e2e.yml"), []byte(`udid: R58M123`), 0644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "R58M123", cfg.UDID)
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultAppPackage, cfg.AppPackage)
	assert.Equal(t, DefaultStrategy, cfg.Recovery.Strategy)
	assert.Equal(t, DefaultAppiumURL, cfg.AppiumURL)
	assert.Equal(t, DefaultMainActivity, cfg.StartActivity())
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"RECOVER_STRATEGY":              "Restart",
		"RECOVER_PREV_FAIL":             "false",
		"RECOVER_FORCE_REINSTALL":       "true",
		"RECOVER_WAIT_MS":               "2500",
		"APP_ACTIVITY":                  ".FromAppActivity",
		"RECOVER_MAIN_ACTIVITY":         ".FromRecover",
		"APP_PACKAGE":                   "com.other",
		"UDID":                          "emulator-5554",
		"APK_PATH":                      "/tmp/app.apk",
		"WAIT_ACTION_BUTTON":            "false",
		"ACTION_BUTTON_WAIT_TIMEOUT_MS": "3000",
		"PREPARE_APP_INITIAL_PAUSE_MS":  "0",
		"ENHANCED_DEBUG":                "false",
		"CLEAR_LOGCAT":                  "false",
		"SCREENSHOT_ON_PASS":            "true",
		"MEMINFO_LINES":                 "40",
	}))
	require.NoError(t, err)

	assert.Equal(t, "restart", cfg.Recovery.Strategy)
	assert.False(t, cfg.Recovery.Enabled)
	assert.True(t, cfg.Recovery.ForceReinstall)
	assert.Equal(t, 2500, cfg.Recovery.WaitMs)
	assert.Equal(t, ".FromRecover", cfg.MainActivity)
	assert.Equal(t, "com.other", cfg.AppPackage)
	assert.Equal(t, "emulator-5554", cfg.UDID)
	assert.Equal(t, "/tmp/app.apk", cfg.APKPath)
	assert.False(t, cfg.Prepare.WaitActionButton)
	assert.Equal(t, 3000, cfg.Prepare.ActionButtonTimeoutMs)
	assert.Equal(t, 0, cfg.Prepare.InitialPauseMs)
	assert.False(t, cfg.Artifacts.EnhancedDebug)
	assert.False(t, cfg.Artifacts.ClearLogcat)
	assert.True(t, cfg.Artifacts.CaptureOnSuccess)
	assert.Equal(t, 40, cfg.Artifacts.MeminfoLines)
}

func TestApplyEnv_OnlyLiteralFalseDisables(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"RECOVER_PREV_FAIL":       "0",
		"RECOVER_FORCE_REINSTALL": "1",
		"WAIT_ACTION_BUTTON":      "FALSE",
	})))

	assert.True(t, cfg.Recovery.Enabled)
	assert.False(t, cfg.Recovery.ForceReinstall)
	assert.True(t, cfg.Prepare.WaitActionButton)
}

func TestApplyEnv_AppActivityFallback(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"APP_ACTIVITY": ".Main"})))
	assert.Equal(t, ".Main", cfg.StartActivity())
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{"RECOVER_WAIT_MS": "soon"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "RECOVER_WAIT_MS")
	assert.Equal(t, 0, cfg.Recovery.WaitMs)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.AppPackage = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMissingRequired))

	cfg = Default()
	cfg.Recovery.WaitMs = -1
	assert.True(t, errors.Is(cfg.Validate(), core.ErrInvalidConfig))
}
