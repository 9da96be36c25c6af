package profiling

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDisabledProfiler(t *testing.T) {
	p := NewProfiler(Config{})
	if p.enabled {
		t.Error("empty config produced an enabled profiler")
	}
	p.Stop() // must be a no-op
}

func TestCPUProfileWritten(t *testing.T) {
	dir := t.TempDir()
	p := NewProfiler(Config{
		CPUProfile:  true,
		ProfileDir:  dir,
		CommandName: "testcmd",
	})
	p.Stop()

	matches, err := filepath.Glob(filepath.Join(dir, "testcmd_cpu_*.prof"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one CPU profile, found %d", len(matches))
	}
}

func TestMemProfileWritten(t *testing.T) {
	dir := t.TempDir()
	p := NewProfiler(Config{
		MemProfile:  true,
		ProfileDir:  dir,
		CommandName: "testcmd",
	})
	p.Stop()

	matches, err := filepath.Glob(filepath.Join(dir, "testcmd_mem_*.prof"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one memory profile, found %d", len(matches))
	}
	info, err := os.Stat(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("memory profile is empty")
	}
}

func TestFlagsToConfig(t *testing.T) {
	f := Flags{Profile: true, ProfileDir: "p"}
	cfg := f.ToConfig("lcat")
	if !cfg.CPUProfile || !cfg.MemProfile {
		t.Error("-profile must enable both CPU and memory profiling")
	}
	if cfg.CommandName != "lcat" {
		t.Errorf("unexpected command name %q", cfg.CommandName)
	}
	if !f.Enabled() {
		t.Error("flags should report enabled")
	}
}
