package sysops

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/gzhole/netmon/internal/dispatch"
)

// HostMetrics samples CPU, memory and root-volume usage.
type HostMetrics struct {
	// DiskPath is the mount sampled for disk usage.
	DiskPath string
	// CPUWindow is how long CPU usage is measured over.
	CPUWindow time.Duration
}

func NewHostMetrics() *HostMetrics {
	root := "/"
	if runtime.GOOS == "windows" {
		root = `C:\`
	}
	return &HostMetrics{DiskPath: root, CPUWindow: 200 * time.Millisecond}
}

func (h *HostMetrics) Sample(ctx context.Context) (dispatch.Metrics, error) {
	var m dispatch.Metrics

	pcts, err := cpu.PercentWithContext(ctx, h.CPUWindow, false)
	if err != nil {
		return m, fmt.Errorf("cpu: %w", err)
	}
	if len(pcts) > 0 {
		m.CPUPercent = pcts[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return m, fmt.Errorf("memory: %w", err)
	}
	m.MemPercent = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, h.DiskPath)
	if err != nil {
		return m, fmt.Errorf("disk %s: %w", h.DiskPath, err)
	}
	m.DiskPercent = du.UsedPercent

	// Boot time is informational; some containers hide it.
	if boot, err := host.BootTimeWithContext(ctx); err == nil && boot > 0 {
		m.BootTime = time.Unix(int64(boot), 0)
	}
	return m, nil
}
