package main

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"mercator-hq/tollgate/pkg/telemetry/health"
)

func TestVersionCommandExists(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}

	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}

	if versionCmd.Short == "" {
		t.Error("versionCmd.Short should not be empty")
	}

	if versionCmd.RunE == nil {
		t.Error("versionCmd.RunE should not be nil")
	}
}

func TestVersionCommand_Text(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	Version, GitCommit = "0.1.0-test", "abc123"
	defer func() { Version, GitCommit = origVersion, origCommit }()

	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}

	for _, want := range []string{
		"Tollgate 0.1.0-test",
		"Git Commit: abc123",
		"Go Version: " + runtime.Version(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := executeCommand(t, "version", "--output", "json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}

	var info health.VersionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if info.Version != Version || info.GoVersion != runtime.Version() {
		t.Errorf("unexpected version info: %+v", info)
	}
}

func TestVersionCommand_BadOutput(t *testing.T) {
	if _, err := executeCommand(t, "version", "--output", "xml"); err == nil {
		t.Fatal("expected error for unknown output format")
	}
}
