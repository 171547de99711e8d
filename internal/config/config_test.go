package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesSpecEnumeratedValues(t *testing.T) {
	cfg := Default()
	if cfg.MaxTraceLength != 10000 {
		t.Fatalf("expected default maxTraceLength 10000, got %d", cfg.MaxTraceLength)
	}
	if cfg.HotFunctionThreshold != 20 {
		t.Fatalf("expected default hotFunctionThreshold 20, got %d", cfg.HotFunctionThreshold)
	}
	if !cfg.EnableJIT {
		t.Fatalf("expected EnableJIT to default true")
	}
}

func TestLoadAppliesYAMLOverOnTopOfDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "maxTraceLength: 2500\nhotLoopThreshold: 3\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxTraceLength != 2500 {
		t.Fatalf("expected YAML override to take effect, got %d", cfg.MaxTraceLength)
	}
	if cfg.HotLoopThreshold != 3 {
		t.Fatalf("expected YAML override for hotLoopThreshold, got %d", cfg.HotLoopThreshold)
	}
	if cfg.MaxSideExits != 20 {
		t.Fatalf("expected untouched fields to keep their default, got %d", cfg.MaxSideExits)
	}
}

func TestEnvOverrideWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("maxTraceLength: 2500\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("SENTRAJIT_MAX_TRACE_LENGTH", "777")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxTraceLength != 777 {
		t.Fatalf("expected env override to win, got %d", cfg.MaxTraceLength)
	}
}

func TestIsBlacklisted(t *testing.T) {
	cfg := Default()
	cfg.TraceBlacklist = []string{"noisyHelper"}
	if !cfg.IsBlacklisted("noisyHelper") {
		t.Fatalf("expected noisyHelper to be blacklisted")
	}
	if cfg.IsBlacklisted("otherFn") {
		t.Fatalf("expected otherFn to not be blacklisted")
	}
}
