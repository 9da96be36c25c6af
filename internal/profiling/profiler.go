// Package profiling manages CPU and memory profiling for the linescan
// tools. Profiles are written to a per-run timestamped file in the profile
// directory.
package profiling

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/mimecast/linescan/internal/dlog"
)

// Profiler manages CPU and memory profiling for one tool run.
type Profiler struct {
	cpuProfile  *os.File
	memProfile  string
	profileDir  string
	commandName string
	enabled     bool
}

// Config holds the profiling configuration.
type Config struct {
	// Enable CPU profiling
	CPUProfile bool
	// Enable memory profiling
	MemProfile bool
	// Directory to store profiles
	ProfileDir string
	// Command name for profile naming
	CommandName string
}

// NewProfiler starts profiling according to cfg. Profiling failures are
// logged, never fatal; a disabled profiler is returned instead.
func NewProfiler(cfg Config) *Profiler {
	if !cfg.CPUProfile && !cfg.MemProfile {
		return &Profiler{enabled: false}
	}

	p := &Profiler{
		profileDir:  cfg.ProfileDir,
		commandName: cfg.CommandName,
		enabled:     true,
	}
	if p.profileDir == "" {
		p.profileDir = "profiles"
	}
	if err := os.MkdirAll(p.profileDir, 0755); err != nil {
		dlog.Errorf("Unable to create profile directory: %v", err)
		p.enabled = false
		return p
	}

	if cfg.CPUProfile {
		p.startCPUProfile()
	}
	if cfg.MemProfile {
		p.memProfile = p.profilePath("mem")
	}
	return p
}

func (p *Profiler) profilePath(kind string) string {
	timestamp := time.Now().Format("20060102_150405")
	return filepath.Join(p.profileDir,
		fmt.Sprintf("%s_%s_%s.prof", p.commandName, kind, timestamp))
}

func (p *Profiler) startCPUProfile() {
	path := p.profilePath("cpu")
	f, err := os.Create(path)
	if err != nil {
		dlog.Errorf("Unable to create CPU profile file: %v", err)
		return
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		dlog.Errorf("Unable to start CPU profile: %v", err)
		f.Close()
		return
	}
	p.cpuProfile = f
	dlog.Debugf("Started CPU profiling: %s", path)
}

// Stop stops all profiling and writes pending profiles to disk.
func (p *Profiler) Stop() {
	if !p.enabled {
		return
	}
	if p.cpuProfile != nil {
		pprof.StopCPUProfile()
		p.cpuProfile.Close()
		p.cpuProfile = nil
	}
	if p.memProfile != "" {
		p.writeMemProfile()
	}
}

func (p *Profiler) writeMemProfile() {
	f, err := os.Create(p.memProfile)
	if err != nil {
		dlog.Errorf("Unable to create memory profile file: %v", err)
		return
	}
	defer f.Close()

	// GC first so the heap profile reflects live data only.
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		dlog.Errorf("Unable to write memory profile: %v", err)
		return
	}
	dlog.Debugf("Wrote memory profile: %s", p.memProfile)
}
