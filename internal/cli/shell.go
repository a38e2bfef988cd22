package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gzhole/netmon/internal/approval"
	"github.com/gzhole/netmon/internal/dispatch"
	"github.com/gzhole/netmon/internal/metrics"
	"github.com/gzhole/netmon/internal/pipeline"
	"github.com/gzhole/netmon/internal/policy"
	"github.com/gzhole/netmon/internal/sysops"
)

var shellMetricsAddr string

const maxProcessRows = 100

const shellHelp = `Verbs:
  ask <query>          run a natural-language request through the pipeline
  cd [path]            change the shell's working directory (path sanitised)
  pwd                  print the working directory
  pslist [cpu|mem] [N] show the top N processes (default cpu, 10)
  help                 show this help
  exit, quit           leave the shell

There is no OS command passthrough. Ctrl-C cancels the running query.`

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive netmon shell",
	Long:  "Start the interactive netmon shell.\n\n" + shellHelp,
	Args:  cobra.NoArgs,
	RunE:  shellCommand,
}

func init() {
	shellCmd.Flags().StringVar(&shellMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	rootCmd.AddCommand(shellCmd)
}

// asker is the part of the mediator the shell drives.
type asker interface {
	Ask(ctx context.Context, query string) pipeline.Outcome
}

type processLister interface {
	ListProcesses(ctx context.Context, limit int, sortBy string) (string, error)
}

type shell struct {
	asker      asker
	processes  processLister
	files      *sysops.Files
	sanitizer  *policy.Sanitizer
	lines      *approval.Lines
	out        io.Writer
	interrupts <-chan os.Signal
}

func shellCommand(cmd *cobra.Command, args []string) error {
	lines := approval.NewLines(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	s, err := newSession(cfg, lines, out)
	if err != nil {
		return err
	}
	defer s.Close()

	addr := shellMetricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}
	if addr != "" {
		srv := serveMetrics(addr, s.metrics)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		fmt.Fprintf(out, "Metrics: http://%s/metrics\n", addr)
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	sh := &shell{
		asker:      s.mediator,
		processes:  s.dispatcher,
		files:      s.files,
		sanitizer:  s.sanitizer,
		lines:      lines,
		out:        out,
		interrupts: interrupts,
	}

	fmt.Fprintf(out, "netmon shell (%s). Type 'help' for commands.\n", cfg.Provider.Type)
	return sh.run(cmd.Context())
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			diag.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}

// run reads commands until exit or end of input.
func (sh *shell) run(ctx context.Context) error {
	for {
		fmt.Fprintf(sh.out, "netmon:%s$ ", sh.files.WorkingDir())

		line, err := sh.lines.ReadLine(ctx)
		if line = strings.TrimSpace(line); line != "" {
			if quit := sh.handle(ctx, line); quit {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(sh.out)
				return nil
			}
			return err
		}
	}
}

func (sh *shell) handle(ctx context.Context, line string) bool {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "exit", "quit":
		fmt.Fprintln(sh.out, "Shutting down.")
		return true
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
	case "pwd":
		fmt.Fprintln(sh.out, sh.files.WorkingDir())
	case "cd":
		sh.cd(rest)
	case "pslist":
		sh.pslist(ctx, rest)
	case "ask":
		if rest == "" {
			fmt.Fprintln(sh.out, "usage: ask <query>")
			return false
		}
		sh.ask(ctx, rest)
	default:
		rejectedStyle.Fprintf(sh.out, "Unknown command %q. There is no shell passthrough; use 'ask <query>'.\n", verb)
	}
	return false
}

func (sh *shell) cd(target string) {
	if target == "" {
		target = "~"
	}
	resolved, err := sh.sanitizer.Sanitize(target)
	if err != nil {
		var rej *policy.Rejection
		if errors.As(err, &rej) {
			rejectedStyle.Fprintln(sh.out, "Rejected: "+rej.Reason)
			return
		}
		errorStyle.Fprintln(sh.out, err.Error())
		return
	}
	if _, err := sh.files.ChangeDirectory(resolved); err != nil {
		errorStyle.Fprintln(sh.out, err.Error())
	}
}

func (sh *shell) pslist(ctx context.Context, args string) {
	sortBy, limit := dispatch.SortByCPU, dispatch.DefaultProcessLimit
	for _, arg := range strings.Fields(args) {
		switch strings.ToLower(arg) {
		case dispatch.SortByCPU, dispatch.SortByMem:
			sortBy = strings.ToLower(arg)
		default:
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 || n > maxProcessRows {
				fmt.Fprintf(sh.out, "usage: pslist [cpu|mem] [1-%d]\n", maxProcessRows)
				return
			}
			limit = n
		}
	}

	out, err := sh.processes.ListProcesses(ctx, limit, sortBy)
	if err != nil {
		errorStyle.Fprintln(sh.out, err.Error())
		return
	}
	fmt.Fprintln(sh.out, out)
}

// ask runs one query. An interrupt cancels that query only.
func (sh *shell) ask(ctx context.Context, query string) {
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if sh.interrupts != nil {
		select {
		case <-sh.interrupts:
		default:
		}
		go func() {
			select {
			case <-sh.interrupts:
				cancel()
			case <-qctx.Done():
			}
		}()
	}

	printOutcome(sh.out, sh.asker.Ask(qctx, query))
}
