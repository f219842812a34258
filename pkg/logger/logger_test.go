package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Close()

	Info("[recovery] strategy=%s", "clear-data")
	Debug("poll %d", 3)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[INFO] [recovery] strategy=clear-data") {
		t.Errorf("log missing info line: %q", content)
	}
	if !strings.Contains(content, "[DEBUG] poll 3") {
		t.Errorf("log missing debug line: %q", content)
	}
}

func TestInit_BadPath(t *testing.T) {
	err := Init(filepath.Join(t.TempDir(), "missing", "dir", "run.log"))
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestSetConsole_FiltersByLevel(t *testing.T) {
	var file, con bytes.Buffer
	InitWriter(&file)
	SetConsole(&con, LevelWarn)
	defer func() {
		SetConsole(nil, LevelWarn)
		Close()
	}()

	Info("quiet")
	Warn("loud %s", "warning")
	Error("louder")

	if strings.Contains(con.String(), "quiet") {
		t.Errorf("console should not carry INFO lines: %q", con.String())
	}
	if !strings.Contains(con.String(), "[WARN] loud warning") {
		t.Errorf("console missing WARN line: %q", con.String())
	}
	if !strings.Contains(con.String(), "[ERROR] louder") {
		t.Errorf("console missing ERROR line: %q", con.String())
	}
	if !strings.Contains(file.String(), "quiet") {
		t.Errorf("file log should carry every level: %q", file.String())
	}
}

func TestLogging_NoInit(t *testing.T) {
	Close()
	// Must not panic without a destination.
	Info("nothing")
	Warn("nothing")
	if GetWriter() == nil {
		t.Error("GetWriter() should never be nil")
	}
}
