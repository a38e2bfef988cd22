package logger

import (
	"github.com/gzhole/netmon/internal/intent"
)

// Trail is the pipeline-facing audit API. Recording never fails the caller:
// write errors go to OnError and the query proceeds.
type Trail struct {
	sink    *AuditLogger
	onError func(error)
}

// NewTrail wraps sink. A nil sink or nil onError is allowed.
func NewTrail(sink *AuditLogger, onError func(error)) *Trail {
	if onError == nil {
		onError = func(error) {}
	}
	return &Trail{sink: sink, onError: onError}
}

// Record appends one entry for query. id correlates the entry with
// diagnostic logs and is generated when empty. reason explains a rejection
// and is empty for authorized intents.
func (t *Trail) Record(id, query string, in intent.Intent, authorized bool, reason string) Record {
	rec := Record{
		ID:     id,
		Query:  query,
		Action: string(in.Action),
		Risk:   string(in.RiskLevel),
		Target: in.TargetOrNone(),
		Value:  in.ValueOrNone(),
		Status: StatusRejected,
		Reason: reason,
	}
	if rec.Action == "" {
		rec.Action = "NONE"
	}
	if rec.Risk == "" {
		rec.Risk = "UNKNOWN"
	}
	if authorized {
		rec.Status = StatusAuthorized
	}

	if t.sink == nil {
		return rec
	}
	logged, err := t.sink.Log(rec)
	if err != nil {
		t.onError(err)
	}
	return logged
}
