package monitoring

import (
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessDiagnostics is a point-in-time snapshot of a subprocess's resource
// usage, sampled from the OS.
type ProcessDiagnostics struct {
	PID            int       `json:"pid"`
	Running        bool      `json:"running"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemoryRSSBytes uint64    `json:"memory_rss_bytes"`
	NumThreads     int32     `json:"num_threads"`
	SampledAt      time.Time `json:"sampled_at"`
	Error          string    `json:"error,omitempty"`
}

// Sample collects diagnostics for a PID. Sampling failures are recorded in
// the snapshot rather than returned: a subprocess racing to exit while we
// sample it is normal, not an error to propagate.
func Sample(pid int) ProcessDiagnostics {
	diagnostics := ProcessDiagnostics{
		PID:       pid,
		SampledAt: time.Now(),
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		diagnostics.Error = err.Error()
		return diagnostics
	}

	running, err := proc.IsRunning()
	if err != nil {
		diagnostics.Error = err.Error()
		return diagnostics
	}
	diagnostics.Running = running
	if !running {
		return diagnostics
	}

	if cpuPercent, err := proc.CPUPercent(); err == nil {
		diagnostics.CPUPercent = cpuPercent
	}
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		diagnostics.MemoryRSSBytes = memInfo.RSS
	}
	if numThreads, err := proc.NumThreads(); err == nil {
		diagnostics.NumThreads = numThreads
	}

	return diagnostics
}
