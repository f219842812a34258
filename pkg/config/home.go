package config

import (
	"os"
	"path/filepath"
	"sync"
)

// HomeEnv overrides the workspace home directory.
const HomeEnv = "WS_E2E_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the workspace home: $WS_E2E_HOME, else <home> when the
// binary lives in <home>/bin, else the working directory. The result is
// cached for the life of the process.
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = homeFrom(os.Getenv(HomeEnv), os.Executable, os.Getwd)
	})
	return homeDir
}

// GetReportsDir returns <home>/reports.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

// ResetHome drops the cached home so tests can change $WS_E2E_HOME.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}

func homeFrom(env string, executable, workdir func() (string, error)) string {
	if env != "" {
		return env
	}
	if exe, err := executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		if dir := filepath.Dir(exe); filepath.Base(dir) == "bin" {
			return filepath.Dir(dir)
		}
	}
	if wd, err := workdir(); err == nil {
		return wd
	}
	return "."
}
