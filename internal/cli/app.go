package cli

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/gzhole/netmon/internal/approval"
	"github.com/gzhole/netmon/internal/config"
	"github.com/gzhole/netmon/internal/dispatch"
	"github.com/gzhole/netmon/internal/guardian"
	"github.com/gzhole/netmon/internal/logger"
	"github.com/gzhole/netmon/internal/metrics"
	"github.com/gzhole/netmon/internal/pipeline"
	"github.com/gzhole/netmon/internal/policy"
	"github.com/gzhole/netmon/internal/provider"
	"github.com/gzhole/netmon/internal/sysops"
)

// session is one fully wired mediation pipeline plus the pieces the shell
// needs directly.
type session struct {
	mediator   *pipeline.Mediator
	dispatcher *dispatch.Dispatcher
	files      *sysops.Files
	sanitizer  *policy.Sanitizer
	metrics    *metrics.Metrics
	audit      *logger.AuditLogger
}

// loadRules reads the base rule file, merges enabled packs and compiles the
// result.
func loadRules(c *config.Config) (*policy.RuleSet, []policy.PackInfo, error) {
	base, err := policy.Load(c.RulesPath)
	if err != nil {
		return nil, nil, err
	}
	merged, infos, err := policy.LoadPacks(c.PacksDir, base)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load packs: %w", err)
	}
	for _, info := range infos {
		if info.Err != nil {
			diag.Warn("skipping broken rule pack", zap.String("pack", info.Path), zap.Error(info.Err))
		}
	}
	rules, err := policy.Compile(merged)
	if err != nil {
		return nil, nil, err
	}
	return rules, infos, nil
}

// newSession builds the pipeline from configuration. Confirmation prompts
// read from lines and write to out.
func newSession(c *config.Config, lines *approval.Lines, out io.Writer) (*session, error) {
	prov, err := provider.New(c.ProviderSettings())
	if err != nil {
		return nil, err
	}

	rules, _, err := loadRules(c)
	if err != nil {
		return nil, err
	}

	actions, err := policy.LoadActionPolicy(c.ActionPolicyPath)
	if err != nil {
		return nil, err
	}

	files, err := sysops.NewFiles("")
	if err != nil {
		return nil, err
	}

	audit, err := logger.New(c.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	m := metrics.New()
	executor := dispatch.New(dispatch.Capabilities{
		Metrics:   sysops.NewHostMetrics(),
		Processes: sysops.NewProcesses(),
		Services:  sysops.NewServices(),
		Network:   sysops.NewNetwork(),
		Files:     files,
	})

	med, err := pipeline.New(pipeline.Config{
		Provider:     prov,
		Rules:        rules,
		ActionPolicy: actions,
		Guardian:     guardian.NewHeuristicProvider(),
		Confirmer:    approval.NewTerminalConfirmer(lines, out),
		Audit:        audit,
		Executor:     executor,
		WorkingDir:   files.Getwd,
		Operator:     c.Operator,
		Timeout:      c.Provider.Timeout,
		Logger:       diag,
		Metrics:      m,
	})
	if err != nil {
		audit.Close()
		return nil, err
	}

	diag.Info("session started",
		zap.String("provider", prov.Name()),
		zap.String("rules_version", rules.Version()),
		zap.String("action_policy", actions.Source()),
		zap.String("cwd", files.WorkingDir()),
	)

	return &session{
		mediator:   med,
		dispatcher: executor,
		files:      files,
		sanitizer:  policy.NewSanitizer(rules).WithWorkingDir(files.Getwd),
		metrics:    m,
		audit:      audit,
	}, nil
}

func (s *session) Close() error {
	return s.audit.Close()
}
