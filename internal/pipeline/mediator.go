// Package pipeline runs one operator query through the full mediation chain:
// normalize, complete, extract, validate, guard, sanitize, check the action
// policy, authorize, audit, dispatch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gzhole/netmon/internal/approval"
	"github.com/gzhole/netmon/internal/extract"
	"github.com/gzhole/netmon/internal/guardian"
	"github.com/gzhole/netmon/internal/intent"
	"github.com/gzhole/netmon/internal/logger"
	"github.com/gzhole/netmon/internal/metrics"
	"github.com/gzhole/netmon/internal/normalize"
	"github.com/gzhole/netmon/internal/policy"
	"github.com/gzhole/netmon/internal/provider"
)

// StageAuthorization marks rejections made by the operator at the gate.
const StageAuthorization policy.Stage = "authorization"

// Class is the single terminal message class of a query.
type Class string

const (
	ClassResult   Class = "result"
	ClassRejected Class = "rejected"
	ClassError    Class = "error"
)

// Executor runs an authorized intent.
type Executor interface {
	Dispatch(ctx context.Context, in intent.Intent) (string, error)
}

// Config wires the mediator. Provider and Rules are required.
type Config struct {
	Provider     provider.CompletionProvider
	Rules        *policy.RuleSet
	ActionPolicy *policy.ActionPolicy
	Guardian     guardian.Provider
	Confirmer    approval.Confirmer
	Audit        *logger.AuditLogger
	Executor     Executor
	// WorkingDir resolves relative paths and feeds the system prompt.
	WorkingDir func() (string, error)
	Operator   string
	GOOS       string
	Timeout    time.Duration
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Outcome is everything known about one query after it reached a terminal
// state.
type Outcome struct {
	ID         string
	Query      string
	Normalized string
	Intent     intent.Intent
	// Resolved is the sanitised absolute path for path-taking actions.
	Resolved string
	Signals  []guardian.Signal
	Decision approval.Decision
	Audit    logger.Record

	Class  Class
	Stage  policy.Stage
	Reason string
	Output string
	Err    error
}

// Mediator is safe for concurrent use; queries are still processed one at a
// time.
type Mediator struct {
	cfg       Config
	validator *policy.Validator
	sanitizer *policy.Sanitizer
	gate      *approval.Gate
	trail     *logger.Trail
	log       *zap.Logger
	metrics   *metrics.Metrics

	mu sync.Mutex
}

func New(cfg Config) (*Mediator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("pipeline: provider is required")
	}
	if cfg.Rules == nil {
		return nil, errors.New("pipeline: rules are required")
	}
	if cfg.WorkingDir == nil {
		cfg.WorkingDir = os.Getwd
	}
	if cfg.Operator == "" {
		cfg.Operator = "operator"
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = provider.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	m := &Mediator{
		cfg:       cfg,
		validator: policy.NewValidator(cfg.Rules),
		sanitizer: policy.NewSanitizer(cfg.Rules).WithWorkingDir(cfg.WorkingDir),
		gate:      approval.NewGate(cfg.Confirmer),
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
	}
	m.trail = logger.NewTrail(cfg.Audit, func(err error) {
		m.metrics.AuditFailures.Inc()
		m.log.Error("audit write failed", zap.Error(err))
	})
	return m, nil
}

// Ask runs query to a terminal state. It never panics and always writes
// exactly one audit record.
func (m *Mediator) Ask(ctx context.Context, query string) (out Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out = Outcome{ID: uuid.NewString(), Query: query}
	log := m.log.With(zap.String("query_id", out.ID))
	defer func() {
		m.metrics.Queries.WithLabelValues(string(out.Class)).Inc()
		log.Info("query complete",
			zap.String("class", string(out.Class)),
			zap.String("action", string(out.Intent.Action)),
			zap.String("risk", string(out.Intent.RiskLevel)),
			zap.String("source", string(out.Intent.Source)),
			zap.String("state", string(out.Decision.State)),
			zap.String("stage", string(out.Stage)),
		)
	}()

	out.Normalized = normalize.Query(query)
	if out.Normalized == "" {
		in := intent.Unknown(intent.RiskGreen, "Empty query")
		return m.reject(out, in, policy.StageValidation, "Empty query")
	}
	log.Debug("normalized", zap.String("stage", "normalize"), zap.String("text", out.Normalized))

	raw, err := m.complete(ctx, out.Normalized, log)
	var in intent.Intent
	if err != nil {
		in = extract.ProviderFailure(err)
	} else {
		res := extract.Resolve(raw, out.Normalized)
		log.Debug("extracted", zap.String("stage", "extract"), zap.String("source", string(res.Source)))

		in, err = m.validate(res)
		if err != nil {
			return m.reject(out, in, policy.StageValidation, in.Message)
		}
		if in.Source == intent.SourceParsed {
			in = m.guard(&out, query, raw, in, log)
		}
	}
	m.metrics.Intents.WithLabelValues(string(in.Action), string(in.Source)).Inc()

	target := in.Target
	if in.Action.TakesPath() && in.HasTarget() {
		resolved, err := m.sanitizer.Sanitize(in.Target)
		if err != nil {
			return m.reject(out, in, policy.StageSanitize, reasonOf(err))
		}
		out.Resolved = resolved
		target = resolved
		log.Debug("sanitized", zap.String("stage", "sanitize"), zap.String("path", resolved))
	}

	if m.cfg.ActionPolicy != nil {
		if err := m.cfg.ActionPolicy.Check(m.cfg.Operator, in, target); err != nil {
			return m.reject(out, in, policy.StagePolicy, reasonOf(err))
		}
	}

	out.Decision = m.gate.Authorize(ctx, in)
	m.metrics.Decisions.WithLabelValues(string(out.Decision.State)).Inc()
	log.Debug("authorized", zap.String("stage", "gate"), zap.String("state", string(out.Decision.State)), zap.String("user_action", out.Decision.UserAction))

	if !out.Decision.State.Allowed() {
		return m.reject(out, in, StageAuthorization, declineReason(out.Decision))
	}

	out.Intent = in
	out.Audit = m.trail.Record(out.ID, query, in, true, "")

	exec := in
	if out.Resolved != "" {
		exec.Target = out.Resolved
	}
	return m.dispatch(ctx, out, exec, log)
}

func (m *Mediator) complete(ctx context.Context, normalized string, log *zap.Logger) (string, error) {
	cwd, err := m.cfg.WorkingDir()
	if err != nil {
		cwd = "unknown"
	}
	system := SystemPrompt(m.cfg.GOOS, cwd, m.cfg.Rules.Actions())

	cctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := m.cfg.Provider.Complete(cctx, system, normalized)
	m.metrics.ProviderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("provider timed out after %s: %w", m.cfg.Timeout, err)
		}
		m.metrics.ProviderErrors.Inc()
		log.Warn("provider failed", zap.String("stage", "provider"), zap.String("provider", m.cfg.Provider.Name()), zap.Error(err))
		return "", err
	}
	log.Debug("completion received", zap.String("stage", "provider"), zap.Int("bytes", len(raw)))
	return raw, nil
}

// validate checks parsed candidates in full. Heuristic and unknown intents
// are built locally but still pass the same checks, so a narrowed whitelist
// and the argument denylist apply to them too.
func (m *Mediator) validate(res extract.Result) (intent.Intent, error) {
	if res.Source == intent.SourceParsed {
		return m.validator.Validate(res.Candidate)
	}

	in := res.Intent
	checked, err := m.validator.Validate(map[string]any{
		"action":     string(in.Action),
		"target":     in.Target,
		"value":      in.Value,
		"risk_level": string(in.RiskLevel),
	})
	if err != nil {
		return checked, err
	}
	return in, nil
}

func (m *Mediator) guard(out *Outcome, query, raw string, in intent.Intent, log *zap.Logger) intent.Intent {
	if m.cfg.Guardian == nil {
		return in
	}
	resp, err := m.cfg.Guardian.Analyze(guardian.Request{Query: query, ProviderText: raw, Intent: in})
	if err != nil {
		log.Warn("guardian failed", zap.String("stage", "guardian"), zap.Error(err))
		return in
	}
	out.Signals = resp.Signals
	for _, s := range resp.Signals {
		m.metrics.GuardianSignals.WithLabelValues(s.ID).Inc()
	}
	raised := guardian.Apply(in, resp)
	if raised.RiskLevel != in.RiskLevel {
		log.Info("risk escalated", zap.String("stage", "guardian"),
			zap.String("from", string(in.RiskLevel)), zap.String("to", string(raised.RiskLevel)),
			zap.Int("signals", len(resp.Signals)))
	}
	return raised
}

func (m *Mediator) reject(out Outcome, in intent.Intent, stage policy.Stage, reason string) Outcome {
	out.Intent = in
	out.Class = ClassRejected
	out.Stage = stage
	out.Reason = reason
	out.Audit = m.trail.Record(out.ID, out.Query, in, false, reason)
	m.metrics.Rejections.WithLabelValues(string(stage)).Inc()
	return out
}

func (m *Mediator) dispatch(ctx context.Context, out Outcome, in intent.Intent, log *zap.Logger) Outcome {
	if m.cfg.Executor == nil {
		out.Class = ClassError
		out.Err = errors.New("no executor configured")
		return out
	}
	output, err := m.cfg.Executor.Dispatch(ctx, in)
	if err != nil {
		out.Class = ClassError
		out.Err = err
		log.Warn("execution failed", zap.String("stage", "dispatch"), zap.Error(err))
		return out
	}
	out.Class = ClassResult
	out.Output = output
	return out
}

func reasonOf(err error) string {
	var rej *policy.Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return err.Error()
}

func declineReason(d approval.Decision) string {
	switch d.UserAction {
	case "cancelled":
		return "Authorization cancelled"
	case "no_confirmer", "auto_deny_non_interactive":
		return "Authorization required but no interactive operator is available"
	case "error_reading_input":
		return "Authorization failed: could not read operator response"
	default:
		return "Action rejected by operator"
	}
}

// Summary renders an outcome as a single operator-facing message.
func (o Outcome) Summary() string {
	switch o.Class {
	case ClassResult:
		return o.Output
	case ClassRejected:
		return "Rejected: " + o.Reason
	case ClassError:
		msg := "Execution error"
		if o.Err != nil {
			msg += ": " + o.Err.Error()
		}
		return msg
	}
	return strings.TrimSpace(o.Reason)
}
