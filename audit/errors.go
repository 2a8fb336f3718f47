package audit

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrorPhase names the seven pipeline phases an error can occur in.
type ErrorPhase string

const (
	PhaseConfiguration ErrorPhase = "configuration"
	PhasePreFetch      ErrorPhase = "pre-fetch"
	PhaseResolver      ErrorPhase = "resolver"
	PhaseDiff          ErrorPhase = "diff"
	PhaseEnrichment    ErrorPhase = "enrichment"
	PhaseEmission      ErrorPhase = "emission"
	PhaseCancellation  ErrorPhase = "cancellation"
)

// AuditError wraps a failure from the audit machinery, distinct from
// errors produced by the original ORM operation itself (which always
// propagate unchanged). Grounded on v3/runtime/errors.go's
// QueryError{Operation,Model,Cause}/PrismaError shape, generalized from
// SQL-error classification to audit-phase classification.
type AuditError struct {
	Phase     ErrorPhase
	Model     string
	Operation string
	Params    interface{}
	Cause     error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("audit: %s error on %s.%s: %v", e.Phase, e.Model, e.Operation, e.Cause)
}

func (e *AuditError) Unwrap() error { return e.Cause }

func NewAuditError(phase ErrorPhase, model, operation string, params interface{}, cause error) *AuditError {
	return &AuditError{Phase: phase, Model: model, Operation: operation, Params: params, Cause: cause}
}

// IsAuditError reports whether err (or something it wraps) is an
// AuditError, and of which phase.
func IsAuditError(err error) (*AuditError, bool) {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Strategy is how a given error-category is handled.
type Strategy int

const (
	StrategyThrow Strategy = iota
	StrategyLog
	StrategyIgnore
	StrategyCustom
)

// ErrorHandler is the optional onAuditErrorHandler(context) hook; if it
// returns a non-nil error, that error overrides the configured Strategy
// for this occurrence.
type ErrorHandler func(AuditError) error

// ErrorPolicy maps each ErrorPhase to a Strategy, with an optional custom
// function used when Strategy == StrategyCustom, plus the single global
// handler invoked in addition to the strategy.
type ErrorPolicy struct {
	Strategies map[ErrorPhase]Strategy
	Custom     map[ErrorPhase]func(*AuditError) error
	Handler    ErrorHandler
}

// DefaultErrorPolicy: throw for emission (so failures roll back the user
// op under awaitWrite=true), log for enrichment/resolver/pre-fetch
// (substituting a null/fallback downstream).
func DefaultErrorPolicy() ErrorPolicy {
	return ErrorPolicy{
		Strategies: map[ErrorPhase]Strategy{
			PhaseConfiguration: StrategyThrow,
			PhasePreFetch:      StrategyLog,
			PhaseResolver:      StrategyLog,
			PhaseDiff:          StrategyLog,
			PhaseEnrichment:    StrategyLog,
			PhaseEmission:      StrategyThrow,
			PhaseCancellation:  StrategyThrow,
		},
	}
}

// Apply runs the policy for ae: first the global Handler (if set; its
// returned error, if non-nil, wins outright), then the phase Strategy.
// A nil return means "swallow the error and continue." logger is the
// Config's zap logger (nil-safe); StrategyLog warns through it instead of
// swallowing silently.
func (p ErrorPolicy) Apply(ae *AuditError, logger *zap.SugaredLogger) error {
	if p.Handler != nil {
		if err := p.Handler(*ae); err != nil {
			return err
		}
	}
	switch p.Strategies[ae.Phase] {
	case StrategyThrow:
		return ae
	case StrategyIgnore:
		return nil
	case StrategyCustom:
		if fn, ok := p.Custom[ae.Phase]; ok && fn != nil {
			return fn(ae)
		}
		return nil
	default: // StrategyLog and unset default to log-and-continue
		if logger != nil {
			logger.Warnw("audit pipeline error", "phase", ae.Phase, "model", ae.Model, "operation", ae.Operation, "error", ae.Cause)
		}
		return nil
	}
}
