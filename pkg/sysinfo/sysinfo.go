// Package sysinfo snapshots host resource usage so benchmark results can be
// read against the machine conditions they were measured under.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is a point-in-time view of host resource usage.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Hostname       string `json:"hostname"`
	Platform       string `json:"platform"`
	KernelVersion  string `json:"kernel_version"`
	UptimeSeconds  uint64 `json:"uptime_seconds"`
	LogicalCPUs    int    `json:"logical_cpus"`
	GoroutineCount int    `json:"goroutine_count"`

	CPUPercent float64 `json:"cpu_percent"`
	Load1      float64 `json:"load_1"`
	Load5      float64 `json:"load_5"`
	Load15     float64 `json:"load_15"`

	MemoryTotal   uint64  `json:"memory_total_bytes"`
	MemoryUsed    uint64  `json:"memory_used_bytes"`
	MemoryPercent float64 `json:"memory_percent"`

	DiskTotal   uint64  `json:"disk_total_bytes"`
	DiskUsed    uint64  `json:"disk_used_bytes"`
	DiskPercent float64 `json:"disk_percent"`
}

// Collect gathers a snapshot of the host. The CPU reading samples utilization
// over a short window, so the call blocks briefly.
func Collect(ctx context.Context) (*Snapshot, error) {
	s := &Snapshot{
		Timestamp:      time.Now(),
		LogicalCPUs:    runtime.NumCPU(),
		GoroutineCount: runtime.NumGoroutine(),
	}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading host info: %w", err)
	}

	s.Hostname = info.Hostname
	s.Platform = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
	s.KernelVersion = info.KernelVersion
	s.UptimeSeconds = info.Uptime

	percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return nil, fmt.Errorf("reading cpu utilization: %w", err)
	}

	if len(percents) > 0 {
		s.CPUPercent = percents[0]
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.Load1 = avg.Load1
		s.Load5 = avg.Load5
		s.Load15 = avg.Load15
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory usage: %w", err)
	}

	s.MemoryTotal = vm.Total
	s.MemoryUsed = vm.Used
	s.MemoryPercent = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return nil, fmt.Errorf("reading disk usage: %w", err)
	}

	s.DiskTotal = du.Total
	s.DiskUsed = du.Used
	s.DiskPercent = du.UsedPercent

	return s, nil
}
