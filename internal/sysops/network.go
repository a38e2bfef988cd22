package sysops

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
	"golang.org/x/sync/errgroup"

	"github.com/gzhole/netmon/internal/dispatch"
)

var hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.-]{0,252})$`)

// ValidHost accepts IP literals and DNS names. Anything that could be read
// as a flag by ping is refused.
func ValidHost(host string) bool {
	if host == "" || strings.HasPrefix(host, "-") {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	return hostnamePattern.MatchString(host)
}

// Network implements dispatch.NetworkTools.
type Network struct {
	goos        string
	run         Runner
	PingCount   int
	DialTimeout time.Duration
	Parallelism int
	Window      time.Duration
}

func NewNetwork() *Network {
	return &Network{
		goos:        runtime.GOOS,
		run:         ExecRunner,
		PingCount:   4,
		DialTimeout: time.Second,
		Parallelism: 16,
		Window:      time.Second,
	}
}

func (n *Network) Ping(ctx context.Context, host string) (string, error) {
	if !ValidHost(host) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	flag := "-c"
	if n.goos == "windows" {
		flag = "-n"
	}
	out, errOut, err := n.run(ctx, "ping", flag, strconv.Itoa(n.PingCount), host)
	if err != nil {
		if errOut != "" {
			return out, fmt.Errorf("%w: %s", err, errOut)
		}
		return out, err
	}
	return out, nil
}

// PortScan dials every port concurrently, bounded by Parallelism. Results
// keep the order of ports.
func (n *Network) PortScan(ctx context.Context, host string, ports []int) ([]dispatch.PortStatus, error) {
	if !ValidHost(host) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}

	results := make([]dispatch.PortStatus, len(ports))
	g, gctx := errgroup.WithContext(ctx)
	if n.Parallelism > 0 {
		g.SetLimit(n.Parallelism)
	}
	dialer := &net.Dialer{Timeout: n.DialTimeout}

	for i, port := range ports {
		g.Go(func() error {
			results[i].Port = port
			conn, err := dialer.DialContext(gctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
			if err != nil {
				return nil
			}
			results[i].Open = true
			return conn.Close()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (n *Network) Bandwidth(ctx context.Context) (dispatch.Bandwidth, error) {
	before, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil || len(before) == 0 {
		return dispatch.Bandwidth{}, fmt.Errorf("reading counters: %w", err)
	}

	timer := time.NewTimer(n.Window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return dispatch.Bandwidth{}, ctx.Err()
	case <-timer.C:
	}

	after, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil || len(after) == 0 {
		return dispatch.Bandwidth{}, fmt.Errorf("reading counters: %w", err)
	}
	return rate(before[0], after[0], n.Window), nil
}

func rate(before, after psnet.IOCountersStat, window time.Duration) dispatch.Bandwidth {
	secs := window.Seconds()
	if secs <= 0 {
		secs = 1
	}
	delta := func(a, b uint64) uint64 {
		if b < a {
			return 0
		}
		return uint64(float64(b-a) / secs)
	}
	return dispatch.Bandwidth{
		SentPerSec: delta(before.BytesSent, after.BytesSent),
		RecvPerSec: delta(before.BytesRecv, after.BytesRecv),
	}
}

func (n *Network) Connections(ctx context.Context) ([]dispatch.Connection, error) {
	stats, err := psnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	out := make([]dispatch.Connection, 0, len(stats))
	for _, s := range stats {
		c := dispatch.Connection{
			Proto:  "UDP",
			Local:  addr(s.Laddr),
			Status: s.Status,
			PID:    s.Pid,
		}
		if s.Type == 1 {
			c.Proto = "TCP"
		}
		if s.Raddr.IP != "" {
			c.Remote = addr(s.Raddr)
		}
		out = append(out, c)
	}
	return out, nil
}

func addr(a psnet.Addr) string {
	return net.JoinHostPort(a.IP, strconv.FormatUint(uint64(a.Port), 10))
}
