package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func fixed(path string, err error) func() (string, error) {
	return func() (string, error) { return path, err }
}

func TestHomeFrom(t *testing.T) {
	install := t.TempDir()
	bin := filepath.Join(install, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	exe := filepath.Join(bin, "ws-e2e")
	if err := os.WriteFile(exe, nil, 0o755); err != nil {
		t.Fatal(err)
	}
	// EvalSymlinks may canonicalize the temp dir (macOS /private/var).
	wantInstall, _ := filepath.EvalSymlinks(install)

	fail := errors.New("unavailable")
	tests := []struct {
		name string
		env  string
		exe  func() (string, error)
		wd   func() (string, error)
		want string
	}{
		{"env wins", "/opt/ws", fixed(exe, nil), fixed("/work", nil), "/opt/ws"},
		{"binary in bin", "", fixed(exe, nil), fixed("/work", nil), wantInstall},
		{"binary elsewhere", "", fixed("/usr/local/go/ws-e2e.test", nil), fixed("/work", nil), "/work"},
		{"no executable", "", fixed("", fail), fixed("/work", nil), "/work"},
		{"nothing resolves", "", fixed("", fail), fixed("", fail), "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := homeFrom(tt.env, tt.exe, tt.wd); got != tt.want {
				t.Errorf("homeFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv(HomeEnv, "/first")
	first := GetHome()

	t.Setenv(HomeEnv, "/second")
	if got := GetHome(); got != first {
		t.Errorf("GetHome() = %q after env change, want cached %q", got, first)
	}

	ResetHome()
	if got := GetHome(); got != "/second" {
		t.Errorf("GetHome() after reset = %q, want /second", got)
	}
}

func TestGetReportsDir(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv(HomeEnv, "/test/home")

	if got, want := GetReportsDir(), filepath.Join("/test/home", "reports"); got != want {
		t.Errorf("GetReportsDir() = %q, want %q", got, want)
	}
}
