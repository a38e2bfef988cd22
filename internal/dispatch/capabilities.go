package dispatch

import (
	"context"
	"io/fs"
	"time"
)

// Metrics is one sample of host utilisation.
type Metrics struct {
	CPUPercent  float64
	MemPercent  float64
	DiskPercent float64
	BootTime    time.Time
}

// MetricsProvider samples host utilisation.
type MetricsProvider interface {
	Sample(ctx context.Context) (Metrics, error)
}

// ProcessInfo describes one running process.
type ProcessInfo struct {
	PID        int32
	Name       string
	CPUPercent float64
	MemPercent float32
}

// Sort keys accepted by ProcessController.List.
const (
	SortByCPU = "cpu"
	SortByMem = "mem"
)

// ProcessController lists and terminates processes. Terminate must refuse
// out-of-range PIDs and critical processes on its own.
type ProcessController interface {
	List(ctx context.Context, limit int, sortBy string) ([]ProcessInfo, error)
	Terminate(ctx context.Context, pid int) (string, error)
}

// ServiceResult carries the output of a service manager invocation.
type ServiceResult struct {
	Stdout string
	Stderr string
}

// ServiceController runs start/stop/restart/status/enable/disable against a
// named service. Implementations validate the name before invoking anything.
type ServiceController interface {
	Manage(ctx context.Context, name, action string) (ServiceResult, error)
}

// PortStatus is the result of probing one TCP port.
type PortStatus struct {
	Port int
	Open bool
}

// Bandwidth is network throughput over one sample window.
type Bandwidth struct {
	SentPerSec uint64
	RecvPerSec uint64
}

// Connection is one inet socket.
type Connection struct {
	Proto  string
	Local  string
	Remote string
	Status string
	PID    int32
}

// NetworkTools probes the network.
type NetworkTools interface {
	Ping(ctx context.Context, host string) (string, error)
	PortScan(ctx context.Context, host string, ports []int) ([]PortStatus, error)
	Bandwidth(ctx context.Context) (Bandwidth, error)
	Connections(ctx context.Context) ([]Connection, error)
}

// DirEntry is one line of a directory listing.
type DirEntry struct {
	Name    string
	IsDir   bool
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// FilesystemNavigator owns the session's working directory.
type FilesystemNavigator interface {
	WorkingDir() string
	ChangeDirectory(path string) (string, error)
	ListDirectory(path string) ([]DirEntry, error)
}
