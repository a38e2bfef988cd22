// Package logger owns the append-only audit trail: one multi-line text entry
// per query, recording what was proposed and whether it was authorized.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gzhole/netmon/internal/intent"
	"github.com/gzhole/netmon/internal/redact"
)

// Status is the authorization outcome written to the trail.
type Status string

const (
	StatusAuthorized Status = "AUTHORIZED"
	StatusRejected   Status = "REJECTED"
)

const (
	timeLayout = "2006-01-02 15:04:05.000"
	separator  = "--------------------------------------------------"
)

// Record is one audit entry.
type Record struct {
	ID     string
	Time   time.Time
	Query  string
	Action string
	Risk   string
	Target string
	Value  string
	Status Status
	Reason string
}

// Level mirrors the status as a log level for grepping.
func (r Record) Level() string {
	if r.Status == StatusAuthorized {
		return "INFO"
	}
	return "WARNING"
}

// Format renders r as a text entry. Every field is redacted and flattened to
// one line so a crafted query cannot inject a fake entry.
func Format(r Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s | %s | id=%s\n", r.Time.Format(timeLayout), r.Level(), r.ID)
	fmt.Fprintf(&sb, "[QUERY]: %s\n", redact.Line(r.Query))
	fmt.Fprintf(&sb, "[ACTION]: %s | [RISK]: %s | [TARGET]: %s", redact.Line(r.Action), redact.Line(r.Risk), redact.Line(orNone(r.Target)))
	if intent.IsSet(r.Value) {
		fmt.Fprintf(&sb, " | [VALUE]: %s", redact.Line(r.Value))
	}
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "[STATUS]: %s\n", r.Status)
	if r.Reason != "" {
		fmt.Fprintf(&sb, "[REASON]: %s\n", redact.Line(r.Reason))
	}
	sb.WriteString(separator)
	sb.WriteByte('\n')
	return sb.String()
}

func orNone(s string) string {
	if intent.IsSet(s) {
		return s
	}
	return intent.None
}

// AuditLogger appends records to a file. Each record is emitted with a single
// write under a mutex on an O_APPEND descriptor, so concurrent callers never
// interleave entries.
type AuditLogger struct {
	file *os.File
	mu   sync.Mutex
	now  func() time.Time
}

// New opens (creating if needed) the audit file with owner-only permissions.
func New(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{file: file, now: time.Now}, nil
}

// Log stamps rec with an id and time when unset and appends it.
func (l *AuditLogger) Log(rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Time.IsZero() {
		rec.Time = l.now()
	}
	entry := Format(rec)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return rec, os.ErrClosed
	}
	_, err := l.file.WriteString(entry)
	return rec, err
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
