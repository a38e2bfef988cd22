package sysops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"github.com/gzhole/netmon/internal/dispatch"
)

var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9@._-]{1,128}$`)

var serviceActions = map[string]struct{}{
	"start": {}, "stop": {}, "restart": {}, "status": {}, "enable": {}, "disable": {},
}

// ValidServiceName reports whether name is a plain unit identifier.
func ValidServiceName(name string) bool {
	return serviceNamePattern.MatchString(name) && !strings.HasPrefix(name, "-")
}

// Runner executes one program with discrete arguments.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// ExecRunner runs the program directly, without a shell.
func ExecRunner(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()), err
}

// Services implements dispatch.ServiceController with systemctl or sc.
type Services struct {
	goos string
	run  Runner
}

func NewServices() *Services {
	return &Services{goos: runtime.GOOS, run: ExecRunner}
}

// NewServicesWith is NewServices with an explicit platform and runner.
func NewServicesWith(goos string, run Runner) *Services {
	return &Services{goos: goos, run: run}
}

func (s *Services) Manage(ctx context.Context, name, action string) (dispatch.ServiceResult, error) {
	if !ValidServiceName(name) {
		return dispatch.ServiceResult{}, fmt.Errorf("%w: name %q", ErrInvalidService, name)
	}
	action = strings.ToLower(strings.TrimSpace(action))
	if _, ok := serviceActions[action]; !ok {
		return dispatch.ServiceResult{}, fmt.Errorf("%w: action %q", ErrInvalidService, action)
	}

	var res dispatch.ServiceResult
	for _, argv := range s.commands(name, action) {
		out, errOut, err := s.run(ctx, argv[0], argv[1:]...)
		res.Stdout = joinOutput(res.Stdout, out)
		res.Stderr = joinOutput(res.Stderr, errOut)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// commands returns the argv lists that perform action on name.
func (s *Services) commands(name, action string) [][]string {
	if s.goos != "windows" {
		return [][]string{{"systemctl", action, name}}
	}
	switch action {
	case "status":
		return [][]string{{"sc", "query", name}}
	case "restart":
		return [][]string{{"sc", "stop", name}, {"sc", "start", name}}
	case "enable":
		return [][]string{{"sc", "config", name, "start=", "auto"}}
	case "disable":
		return [][]string{{"sc", "config", name, "start=", "disabled"}}
	default:
		return [][]string{{"sc", action, name}}
	}
}

func joinOutput(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n" + b
	}
}
