package sysops

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/gzhole/netmon/internal/dispatch"
)

// MaxPID is the largest PID accepted for termination (Linux pid_max ceiling).
const MaxPID = 4194304

var criticalNames = map[string]struct{}{
	"init":         {},
	"systemd":      {},
	"launchd":      {},
	"kernel_task":  {},
	"kthreadd":     {},
	"sshd":         {},
	"dbus-daemon":  {},
	"system":       {},
	"smss.exe":     {},
	"csrss.exe":    {},
	"wininit.exe":  {},
	"winlogon.exe": {},
	"services.exe": {},
	"lsass.exe":    {},
	"svchost.exe":  {},
}

// IsCritical reports whether a process name is on the never-terminate list.
func IsCritical(name string) bool {
	_, ok := criticalNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Processes implements dispatch.ProcessController with gopsutil.
type Processes struct {
	self, parent int
}

func NewProcesses() *Processes {
	return &Processes{self: os.Getpid(), parent: os.Getppid()}
}

func (p *Processes) List(ctx context.Context, limit int, sortBy string) ([]dispatch.ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	out := make([]dispatch.ProcessInfo, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			// Exited or access denied.
			continue
		}
		cpuPct, _ := proc.CPUPercentWithContext(ctx)
		memPct, _ := proc.MemoryPercentWithContext(ctx)
		out = append(out, dispatch.ProcessInfo{PID: proc.Pid, Name: name, CPUPercent: cpuPct, MemPercent: memPct})
	}

	SortProcesses(out, sortBy)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SortProcesses orders by CPU (default) or memory, highest first.
func SortProcesses(procs []dispatch.ProcessInfo, sortBy string) {
	byMem := strings.EqualFold(sortBy, dispatch.SortByMem)
	sort.SliceStable(procs, func(i, j int) bool {
		if byMem {
			return procs[i].MemPercent > procs[j].MemPercent
		}
		return procs[i].CPUPercent > procs[j].CPUPercent
	})
}

// Guard rejects PIDs that must never be signalled: out of range, init, and
// this process or its parent.
func (p *Processes) Guard(pid int) error {
	if pid <= 1 || pid > MaxPID {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	if pid == p.self || pid == p.parent {
		return fmt.Errorf("%w: PID %d is this session", ErrCriticalProcess, pid)
	}
	return nil
}

func (p *Processes) Terminate(ctx context.Context, pid int) (string, error) {
	if err := p.Guard(pid); err != nil {
		return "", err
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", fmt.Errorf("PID %d: %w", pid, err)
	}
	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("PID %d: %w", pid, err)
	}
	if IsCritical(name) {
		return "", fmt.Errorf("%w: %s (PID %d)", ErrCriticalProcess, name, pid)
	}
	if err := proc.TerminateWithContext(ctx); err != nil {
		return "", fmt.Errorf("terminating PID %d: %w", pid, err)
	}
	return fmt.Sprintf("PID %d (%s) terminated.", pid, name), nil
}
