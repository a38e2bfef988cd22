package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gzhole/netmon/internal/logger"
)

func sampleRecords() []logger.Record {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	return []logger.Record{
		{ID: "1", Time: base, Query: "show cpu", Action: "MONITOR_CPU", Risk: "GREEN", Target: "none", Status: logger.StatusAuthorized},
		{ID: "2", Time: base.Add(time.Minute), Query: "kill process 9999", Action: "KILL_PROC", Risk: "RED", Target: "9999", Status: logger.StatusRejected, Reason: "Action rejected by operator"},
		{ID: "3", Time: base.Add(2 * time.Minute), Query: "restart nginx", Action: "SERVICE_OP", Risk: "YELLOW", Target: "nginx", Value: "restart", Status: logger.StatusAuthorized},
		{ID: "4", Time: base.Add(3 * time.Minute), Query: "cpu again", Action: "MONITOR_CPU", Risk: "GREEN", Target: "none", Status: logger.StatusAuthorized},
	}
}

func TestFilterRecords(t *testing.T) {
	records := sampleRecords()

	assert.Len(t, filterRecords(records, "", ""), 4)
	assert.Len(t, filterRecords(records, "rejected", ""), 1)
	assert.Len(t, filterRecords(records, "", "monitor_cpu"), 2)
	assert.Len(t, filterRecords(records, "AUTHORIZED", "KILL_PROC"), 0)
}

func TestPrintRecords(t *testing.T) {
	var out bytes.Buffer
	printRecords(&out, sampleRecords()[1:3])

	s := out.String()
	assert.Contains(t, s, "kill process 9999")
	assert.Contains(t, s, "Reason: Action rejected by operator")
	assert.Contains(t, s, "SERVICE_OP [YELLOW] target=nginx value=restart")
	assert.NotContains(t, s, "show cpu")
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, sampleRecords())

	s := out.String()
	assert.Contains(t, s, "Total queries:   4")
	assert.Contains(t, s, "AUTHORIZED:      3")
	assert.Contains(t, s, "REJECTED:        1")
	assert.Contains(t, s, "GREEN/YELLOW/RED: 2/1/1")
	assert.Contains(t, s, "kill process 9999 (Action rejected by operator)")
}

func TestSortedByCount(t *testing.T) {
	got := sortedByCount(map[string]int{"PING": 1, "MONITOR_CPU": 3, "KILL_PROC": 1})
	assert.Equal(t, []string{"MONITOR_CPU", "KILL_PROC", "PING"}, got)
}
