// Package dispatch maps an authorized intent to exactly one call on a
// capability-scoped collaborator. No call goes through a command interpreter.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gzhole/netmon/internal/intent"
)

var (
	// ErrNotImplemented is returned for whitelisted actions without a handler.
	ErrNotImplemented = errors.New("not implemented")
	// ErrMissingCapability is returned when the collaborator an action needs
	// was not configured.
	ErrMissingCapability = errors.New("capability not configured")
	// ErrMissingTarget is returned when an action needs a target and got none.
	ErrMissingTarget = errors.New("target required")
	// ErrCollaboratorPanic wraps a panic recovered from a collaborator.
	ErrCollaboratorPanic = errors.New("collaborator panicked")
)

// DefaultPorts are probed when a PORT_SCAN intent carries no port list.
var DefaultPorts = []int{21, 22, 80, 443, 3306, 8080}

// DefaultServiceAction is used when a SERVICE_OP intent has no value.
const DefaultServiceAction = "status"

// Capabilities bundles the collaborators. Any may be nil; actions needing a
// nil collaborator fail with ErrMissingCapability.
type Capabilities struct {
	Metrics   MetricsProvider
	Processes ProcessController
	Services  ServiceController
	Network   NetworkTools
	Files     FilesystemNavigator
}

// Dispatcher executes authorized intents.
type Dispatcher struct {
	caps Capabilities
	now  func() time.Time
}

func New(caps Capabilities) *Dispatcher {
	return &Dispatcher{caps: caps, now: time.Now}
}

// Dispatch runs in and returns operator-facing output. Collaborator errors
// and panics come back as errors; nothing escapes as a panic.
func (d *Dispatcher) Dispatch(ctx context.Context, in intent.Intent) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = fmt.Errorf("%s: %w: %v", in.Action, ErrCollaboratorPanic, r)
		}
	}()

	switch in.Action {
	case intent.ActionMonitorCPU, intent.ActionMonitorMem, intent.ActionMonitorDisk, intent.ActionMonitorSummary:
		return d.monitor(ctx, in.Action)
	case intent.ActionMonitorDashboard:
		return "", fmt.Errorf("%s: %w", in.Action, ErrNotImplemented)
	case intent.ActionListFiles:
		return d.listFiles(in.Target)
	case intent.ActionMoveDir:
		return d.moveDir(in.Target)
	case intent.ActionMoveAndList:
		return d.moveAndList(in.Target)
	case intent.ActionServiceOp:
		return d.serviceOp(ctx, in)
	case intent.ActionKillProc:
		return d.killProc(ctx, in.Target)
	case intent.ActionPortScan:
		return d.portScan(ctx, in)
	case intent.ActionPing:
		return d.ping(ctx, in.Target)
	case intent.ActionBandwidth:
		return d.bandwidth(ctx)
	case intent.ActionConnections:
		return d.connections(ctx)
	case intent.ActionUnknown:
		return unknown(in), nil
	default:
		return "", fmt.Errorf("%s: %w", in.Action, ErrNotImplemented)
	}
}

func missing(name string) error {
	return fmt.Errorf("%s: %w", name, ErrMissingCapability)
}

func requireTarget(action intent.Action, target string) (string, error) {
	if !intent.IsSet(target) {
		return "", fmt.Errorf("%s: %w", action, ErrMissingTarget)
	}
	return strings.TrimSpace(target), nil
}

func (d *Dispatcher) monitor(ctx context.Context, action intent.Action) (string, error) {
	if d.caps.Metrics == nil {
		return "", missing("metrics")
	}
	m, err := d.caps.Metrics.Sample(ctx)
	if err != nil {
		return "", fmt.Errorf("sampling metrics: %w", err)
	}

	switch action {
	case intent.ActionMonitorCPU:
		return fmt.Sprintf("CPU usage: %.1f%%", m.CPUPercent), nil
	case intent.ActionMonitorMem:
		return fmt.Sprintf("Memory usage: %.1f%%", m.MemPercent), nil
	case intent.ActionMonitorDisk:
		return fmt.Sprintf("Disk usage: %.1f%%", m.DiskPercent), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CPU usage:    %.1f%% (%s)\n", m.CPUPercent, Health(m.CPUPercent))
	fmt.Fprintf(&b, "Memory usage: %.1f%% (%s)\n", m.MemPercent, Health(m.MemPercent))
	fmt.Fprintf(&b, "Disk usage:   %.1f%% (%s)", m.DiskPercent, Health(m.DiskPercent))
	if !m.BootTime.IsZero() {
		fmt.Fprintf(&b, "\nUp since:     %s (%s)", m.BootTime.Format(time.DateTime), d.now().Sub(m.BootTime).Truncate(time.Minute))
	}
	return b.String(), nil
}

// Health buckets a utilisation percentage.
func Health(pct float64) string {
	switch {
	case pct > 85:
		return "CRITICAL"
	case pct > 60:
		return "WARNING"
	default:
		return "HEALTHY"
	}
}

func (d *Dispatcher) listFiles(target string) (string, error) {
	if d.caps.Files == nil {
		return "", missing("filesystem")
	}
	path := "."
	if intent.IsSet(target) {
		path = target
	}
	entries, err := d.caps.Files.ListDirectory(path)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", path, err)
	}
	return formatEntries(entries), nil
}

func (d *Dispatcher) moveDir(target string) (string, error) {
	if d.caps.Files == nil {
		return "", missing("filesystem")
	}
	path, err := requireTarget(intent.ActionMoveDir, target)
	if err != nil {
		return "", err
	}
	cwd, err := d.caps.Files.ChangeDirectory(path)
	if err != nil {
		return "", fmt.Errorf("changing directory: %w", err)
	}
	return "Directory changed: " + cwd, nil
}

func (d *Dispatcher) moveAndList(target string) (string, error) {
	if d.caps.Files == nil {
		return "", missing("filesystem")
	}
	path, err := requireTarget(intent.ActionMoveAndList, target)
	if err != nil {
		return "", err
	}
	cwd, err := d.caps.Files.ChangeDirectory(path)
	if err != nil {
		return "", fmt.Errorf("changing directory: %w", err)
	}
	entries, err := d.caps.Files.ListDirectory(cwd)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", cwd, err)
	}
	return "Moved to: " + cwd + "\n" + formatEntries(entries), nil
}

func formatEntries(entries []DirEntry) string {
	if len(entries) == 0 {
		return "(empty)"
	}
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Mode, e.Size, e.ModTime.Format("Jan _2 15:04"), name)
	}
	_ = w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}

func (d *Dispatcher) serviceOp(ctx context.Context, in intent.Intent) (string, error) {
	if d.caps.Services == nil {
		return "", missing("services")
	}
	name, err := requireTarget(in.Action, in.Target)
	if err != nil {
		return "", err
	}
	action := DefaultServiceAction
	if in.HasValue() {
		action = strings.ToLower(strings.TrimSpace(in.Value))
	}

	res, err := d.caps.Services.Manage(ctx, name, action)
	if err != nil {
		if res.Stderr != "" {
			return "", fmt.Errorf("%s %s: %w: %s", action, name, err, res.Stderr)
		}
		return "", fmt.Errorf("%s %s: %w", action, name, err)
	}
	if out := strings.TrimSpace(res.Stdout); out != "" {
		return out, nil
	}
	return fmt.Sprintf("%s %s: action completed.", action, name), nil
}

func (d *Dispatcher) killProc(ctx context.Context, target string) (string, error) {
	if d.caps.Processes == nil {
		return "", missing("processes")
	}
	raw, err := requireTarget(intent.ActionKillProc, target)
	if err != nil {
		return "", err
	}
	pid, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("invalid PID %q", raw)
	}
	return d.caps.Processes.Terminate(ctx, pid)
}

func (d *Dispatcher) portScan(ctx context.Context, in intent.Intent) (string, error) {
	if d.caps.Network == nil {
		return "", missing("network")
	}
	host, err := requireTarget(in.Action, in.Target)
	if err != nil {
		return "", err
	}
	ports := DefaultPorts
	if in.HasValue() {
		if ports, err = ParsePorts(in.Value); err != nil {
			return "", err
		}
	}

	results, err := d.caps.Network.PortScan(ctx, host, ports)
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", host, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Port scan of %s:", host)
	for _, r := range results {
		state := "CLOSED"
		if r.Open {
			state = "OPEN"
		}
		fmt.Fprintf(&b, "\nPort %d: %s", r.Port, state)
	}
	return b.String(), nil
}

// ParsePorts reads a comma or space separated port list.
func ParsePorts(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty port list")
	}
	ports := make([]int, 0, len(fields))
	for _, f := range fields {
		p, err := strconv.Atoi(f)
		if err != nil || p < 1 || p > 65535 {
			return nil, fmt.Errorf("invalid port %q", f)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func (d *Dispatcher) ping(ctx context.Context, target string) (string, error) {
	if d.caps.Network == nil {
		return "", missing("network")
	}
	host, err := requireTarget(intent.ActionPing, target)
	if err != nil {
		return "", err
	}
	out, err := d.caps.Network.Ping(ctx, host)
	if err != nil {
		return "", fmt.Errorf("ping %s: %w", host, err)
	}
	return strings.TrimSpace(out), nil
}

func (d *Dispatcher) bandwidth(ctx context.Context) (string, error) {
	if d.caps.Network == nil {
		return "", missing("network")
	}
	bw, err := d.caps.Network.Bandwidth(ctx)
	if err != nil {
		return "", fmt.Errorf("sampling bandwidth: %w", err)
	}
	return fmt.Sprintf("Sent: %s/s\nReceived: %s/s", FormatBytes(bw.SentPerSec), FormatBytes(bw.RecvPerSec)), nil
}

func (d *Dispatcher) connections(ctx context.Context) (string, error) {
	if d.caps.Network == nil {
		return "", missing("network")
	}
	conns, err := d.caps.Network.Connections(ctx)
	if err != nil {
		return "", fmt.Errorf("listing connections: %w", err)
	}
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROTO\tLOCAL\tREMOTE\tSTATUS\tPID")
	for _, c := range conns {
		remote := c.Remote
		if remote == "" {
			remote = "LISTENING"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", c.Proto, c.Local, remote, c.Status, c.PID)
	}
	_ = w.Flush()
	return strings.TrimRight(buf.String(), "\n"), nil
}

// DefaultProcessLimit is the row count ListProcesses uses when limit <= 0.
const DefaultProcessLimit = 10

// ListProcesses renders the top processes by CPU or memory. It is a
// read-only view for the shell and is not reachable from an intent.
func (d *Dispatcher) ListProcesses(ctx context.Context, limit int, sortBy string) (string, error) {
	if d.caps.Processes == nil {
		return "", missing("processes")
	}
	if limit <= 0 {
		limit = DefaultProcessLimit
	}
	if !strings.EqualFold(sortBy, SortByMem) {
		sortBy = SortByCPU
	}
	procs, err := d.caps.Processes.List(ctx, limit, strings.ToLower(sortBy))
	if err != nil {
		return "", fmt.Errorf("listing processes: %w", err)
	}
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tCPU%\tMEM%")
	for _, p := range procs {
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%.1f\n", p.PID, p.Name, p.CPUPercent, p.MemPercent)
	}
	_ = w.Flush()
	return strings.TrimRight(buf.String(), "\n"), nil
}

func unknown(in intent.Intent) string {
	switch {
	case in.Message != "":
		return "AI analysis: " + in.Message
	case in.Raw != "":
		return "AI analysis: " + in.Raw
	default:
		return "AI analysis: request not understood."
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
