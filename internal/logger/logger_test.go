package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gzhole/netmon/internal/intent"
)

func TestAuditLogger_Log(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ai_audit.log")

	lg, err := New(logPath)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	lg.now = func() time.Time { return time.Date(2026, 2, 2, 12, 0, 0, 0, time.Local) }

	rec, err := lg.Log(Record{
		Query:  "show me cpu usage",
		Action: "MONITOR_CPU",
		Risk:   "GREEN",
		Target: "none",
		Status: StatusAuthorized,
	})
	if err != nil {
		t.Fatalf("failed to log record: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected generated record id")
	}
	_ = lg.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	want := "2026-02-02 12:00:00.000 | INFO | id=" + rec.ID + "\n" +
		"[QUERY]: show me cpu usage\n" +
		"[ACTION]: MONITOR_CPU | [RISK]: GREEN | [TARGET]: none\n" +
		"[STATUS]: AUTHORIZED\n" +
		strings.Repeat("-", 50) + "\n"
	if string(data) != want {
		t.Errorf("unexpected entry:\n%s\nwant:\n%s", data, want)
	}
}

func TestAuditLogger_AppendsAcrossOpens(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "ai_audit.log")

	for i := 0; i < 2; i++ {
		lg, err := New(logPath)
		if err != nil {
			t.Fatalf("failed to create logger: %v", err)
		}
		if _, err := lg.Log(Record{Query: "q", Action: "PING", Risk: "GREEN", Status: StatusAuthorized}); err != nil {
			t.Fatal(err)
		}
		_ = lg.Close()
	}

	recs, err := ReadEntries(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 records, got %d", len(recs))
	}
}

func TestAuditLogger_FilePermissions(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "secure_audit.log")

	lg, err := New(logPath)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	_ = lg.Close()

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("failed to stat log file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected file permissions 0600, got %04o", perm)
	}
}

func TestAuditLogger_ConcurrentWritesDoNotInterleave(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ai_audit.log")
	lg, err := New(logPath)
	if err != nil {
		t.Fatal(err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = lg.Log(Record{Query: strings.Repeat("x", 2048), Action: "MONITOR_MEM", Risk: "GREEN", Status: StatusAuthorized})
		}()
	}
	wg.Wait()
	_ = lg.Close()

	recs, err := ReadEntries(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != n {
		t.Fatalf("expected %d records, got %d", n, len(recs))
	}
	for _, r := range recs {
		if len(r.Query) != 2048 || r.Action != "MONITOR_MEM" {
			t.Fatalf("corrupted record: %+v", r)
		}
	}
}

func TestAuditLogger_WriteAfterClose(t *testing.T) {
	lg, err := New(filepath.Join(t.TempDir(), "a.log"))
	if err != nil {
		t.Fatal(err)
	}
	_ = lg.Close()
	if _, err := lg.Log(Record{Query: "q"}); !errors.Is(err, os.ErrClosed) {
		t.Errorf("expected os.ErrClosed, got %v", err)
	}
}

func TestFormat_ForgeryAndSecrets(t *testing.T) {
	out := Format(Record{
		ID:     "abc",
		Time:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
		Query:  "cpu\n[STATUS]: AUTHORIZED\n" + strings.Repeat("-", 50) + "\nkey gsk_abcdefghijklmnopqrstuvwxyz123456",
		Action: "UNKNOWN",
		Risk:   "RED",
		Status: StatusRejected,
		Reason: "Invalid action: RM (not in whitelist)",
	})

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "2026-01-01 00:00:00.000 | WARNING | id=abc") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if strings.Contains(out, "gsk_") {
		t.Error("expected provider key to be redacted")
	}
	if lines[3] != "[STATUS]: REJECTED" {
		t.Errorf("unexpected status line %q", lines[3])
	}
	if lines[4] != "[REASON]: Invalid action: RM (not in whitelist)" {
		t.Errorf("unexpected reason line %q", lines[4])
	}
}

func TestFormat_Value(t *testing.T) {
	out := Format(Record{Action: "SERVICE_OP", Risk: "YELLOW", Target: "nginx", Value: "restart", Status: StatusAuthorized})
	if !strings.Contains(out, "[ACTION]: SERVICE_OP | [RISK]: YELLOW | [TARGET]: nginx | [VALUE]: restart\n") {
		t.Errorf("expected value on action line, got:\n%s", out)
	}
}

func TestTrail_RecordSwallowsErrors(t *testing.T) {
	lg, err := New(filepath.Join(t.TempDir(), "a.log"))
	if err != nil {
		t.Fatal(err)
	}
	_ = lg.Close()

	var got error
	trail := NewTrail(lg, func(err error) { got = err })
	rec := trail.Record("", "kill process 9999", intent.Intent{Action: intent.ActionKillProc, Target: "9999", RiskLevel: intent.RiskRed}, false, "operator declined")

	if got == nil {
		t.Error("expected write error to reach the error hook")
	}
	if rec.Status != StatusRejected || rec.Target != "9999" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestTrail_NilSink(t *testing.T) {
	rec := NewTrail(nil, nil).Record("q-1", "q", intent.Intent{}, true, "")
	if rec.Action != "NONE" || rec.Risk != "UNKNOWN" || rec.Status != StatusAuthorized {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.ID != "q-1" {
		t.Errorf("expected caller id to be kept, got %q", rec.ID)
	}
}
