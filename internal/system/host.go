package system

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a snapshot of the machine a render ran on.
type HostStats struct {
	CPUModel     string
	LogicalCPUs  int
	CPUPercent   float64
	TotalMemMB   uint64
	UsedMemPct   float64
	HeapAllocMB  uint64
	NumGoroutine int
}

// Host collects HostStats. Fields gopsutil cannot read stay zero.
func Host(ctx context.Context) HostStats {
	s := HostStats{
		LogicalCPUs:  runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		s.CPUModel = infos[0].ModelName
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.TotalMemMB = vm.Total / 1024 / 1024
		s.UsedMemPct = vm.UsedPercent
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAllocMB = ms.HeapAlloc / 1024 / 1024

	return s
}
