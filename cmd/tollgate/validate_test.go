package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/tollgate/pkg/cli"
)

const validConfig = `
buckets:
  tenant-a:
    capacity: 100
    refill_rate: 10
  admin:
    capacity: unlimited
refill:
  schedule: "@every 5s"
cost:
  models:
    gpt-4o:
      prompt_cost_per_1k: 5
      completion_cost_per_1k: 15
`

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name         string
		config       string
		wantExitCode int
		wantOutput   []string
	}{
		{
			name:         "valid",
			config:       validConfig,
			wantExitCode: cli.ExitOK,
			wantOutput: []string{
				"✓ Configuration valid",
				"Refill: @every 5s",
				"Priced models: 1",
				"tenant-a",
				"unlimited",
			},
		},
		{
			name:         "no buckets",
			config:       "server:\n  listen_address: 127.0.0.1:9000\n",
			wantExitCode: cli.ExitOK,
			wantOutput:   []string{"No buckets declared"},
		},
		{
			name:         "bucket without capacity",
			config:       "buckets:\n  broken:\n    refill_rate: 1\n",
			wantExitCode: cli.ExitConfigError,
		},
		{
			name:         "bad schedule",
			config:       "refill:\n  schedule: every now and then\n",
			wantExitCode: cli.ExitConfigError,
		},
		{
			name:         "not yaml",
			config:       "buckets: [",
			wantExitCode: cli.ExitConfigError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.yaml", tt.config)

			out, err := executeCommand(t, "validate", "--config", path)
			if got := cli.ExitCode(err); got != tt.wantExitCode {
				t.Fatalf("exit code = %d, want %d (err: %v)", got, tt.wantExitCode, err)
			}
			for _, want := range tt.wantOutput {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestValidateCommand_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	_, err := executeCommand(t, "validate", "--config", path)
	if got := cli.ExitCode(err); got != cli.ExitConfigError {
		t.Fatalf("exit code = %d, want %d", got, cli.ExitConfigError)
	}
}

func TestValidateCommand_JSON(t *testing.T) {
	path := writeFile(t, "config.yaml", validConfig)

	out, err := executeCommand(t, "validate", "--config", path, "--output", "json")
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}

	var result validateResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}

	if !result.Valid || len(result.Buckets) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	// Sorted by identifier.
	if result.Buckets[0].ID != "admin" || result.Buckets[1].ID != "tenant-a" {
		t.Errorf("buckets not sorted: %+v", result.Buckets)
	}
	if result.Buckets[1].Capacity != "100" || result.Buckets[1].InitialBalance != 100 {
		t.Errorf("tenant-a should start full: %+v", result.Buckets[1])
	}
}

func TestValidateCommand_EnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", validConfig)
	t.Setenv("TOLLGATE_STORAGE_BACKEND", "sqlite")

	out, err := executeCommand(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "Storage: sqlite") {
		t.Errorf("environment override not applied:\n%s", out)
	}
}

func TestValidateCommand_EnvFile(t *testing.T) {
	path := writeFile(t, "config.yaml", validConfig)
	env := writeFile(t, "test.env", "TOLLGATE_STORAGE_BACKEND=sqlite\n")
	// godotenv does not override variables that are already set.
	t.Setenv("TOLLGATE_STORAGE_BACKEND", "")
	os.Unsetenv("TOLLGATE_STORAGE_BACKEND")

	out, err := executeCommand(t, "validate", "--config", path, "--env-file", env)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "Storage: sqlite") {
		t.Errorf("env file not applied:\n%s", out)
	}
}
