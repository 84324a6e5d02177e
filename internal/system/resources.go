package system

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Resources is a snapshot of host and process usage.
type Resources struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsedMB  float64
	ProcessRSSMB  float64
	Goroutines    int
	NumCPU        int
}

// Sample collects a snapshot. CPU usage is measured over interval; a zero
// interval compares against the previous call.
func Sample(ctx context.Context, interval time.Duration) (Resources, error) {
	res := Resources{
		Goroutines: runtime.NumGoroutine(),
		NumCPU:     runtime.NumCPU(),
	}

	percents, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return res, fmt.Errorf("cpu usage: %w", err)
	}
	if len(percents) > 0 {
		res.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return res, fmt.Errorf("memory usage: %w", err)
	}
	res.MemoryPercent = vm.UsedPercent
	res.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return res, fmt.Errorf("process: %w", err)
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return res, fmt.Errorf("process memory: %w", err)
	}
	res.ProcessRSSMB = float64(info.RSS) / (1024 * 1024)
	return res, nil
}

func (r Resources) String() string {
	return fmt.Sprintf("CPU: %.1f%% of %d cores | Memory: %.1f%% (%.0f MB) | Process RSS: %.1f MB | Goroutines: %d",
		r.CPUPercent, r.NumCPU, r.MemoryPercent, r.MemoryUsedMB, r.ProcessRSSMB, r.Goroutines)
}
