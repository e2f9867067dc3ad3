package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	fc, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.Project != "railboard" {
		t.Fatalf("project %q", fc.Project)
	}
	if fc.GracePeriod != 5*time.Second || fc.ProbeTimeout != 750*time.Millisecond {
		t.Fatalf("defaults: %+v", fc)
	}
	if fc.JournalPath == "" {
		t.Fatal("journal path not defaulted")
	}

	reg, err := fc.Registry(false)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if reg.Len() != 5 {
		t.Fatalf("built-in table: %d services", reg.Len())
	}
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

const sampleTOML = `
project = "myproj"
grace_period = "10s"
probe_timeout = "2s"

[log]
dir = "/tmp/myproj-logs"

[[services]]
name = "db"
port = 5433
check = "tcp"
command = "docker compose up -d db"
group = 0

[[services]]
name = "api"
port = 8081
check = "http"
health_url = "http://localhost:8081/health"
command = "cargo run"
group = 1

[[services]]
name = "grafana"
port = 3002
check = "tcp"
command = "docker compose up -d grafana"
group = 2
monitoring = true
`

func TestLoadOverridesRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "railctl.toml")
	if err := os.WriteFile(path, []byte(sampleTOML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	fc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.Project != "myproj" || fc.GracePeriod != 10*time.Second || fc.ProbeTimeout != 2*time.Second {
		t.Fatalf("parsed: %+v", fc)
	}
	if fc.LogConfig().Dir != "/tmp/myproj-logs" {
		t.Fatalf("log dir %q", fc.LogConfig().Dir)
	}

	reg, err := fc.Registry(true)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if reg.Len() != 3 {
		t.Fatalf("got %d services", reg.Len())
	}
	svc, ok := reg.ByName("api")
	if !ok || svc.Port != 8081 || svc.HealthURL == "" {
		t.Fatalf("api: %+v", svc)
	}

	// Monitoring entries drop out without the flag.
	core, err := fc.Registry(false)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if core.Len() != 2 {
		t.Fatalf("core table: %d services", core.Len())
	}
	if _, ok := core.ByName("grafana"); ok {
		t.Fatal("monitoring service kept")
	}
}

func TestLoadRejectsInvalidServiceTable(t *testing.T) {
	bad := `
[[services]]
name = "a"
port = 1000
check = "http"
command = "x"
`
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := fc.Registry(false); err == nil {
		t.Fatal("http service without health_url accepted")
	}
}
