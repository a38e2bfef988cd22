package logger

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"
)

// ReadEntries parses every record in the audit file at path. A missing file
// yields no records. Lines that are not part of a recognised entry are
// skipped.
func ReadEntries(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads records from r.
func Parse(r io.Reader) ([]Record, error) {
	var (
		records []Record
		cur     *Record
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == separator:
			if cur != nil {
				records = append(records, *cur)
				cur = nil
			}
		case strings.HasPrefix(line, "["):
			if cur != nil {
				parseField(cur, line)
			}
		case strings.Contains(line, " | id="):
			cur = parseHeader(line)
		}
	}
	return records, scanner.Err()
}

func parseField(cur *Record, line string) {
	switch {
	case strings.HasPrefix(line, "[QUERY]: "):
		cur.Query = strings.TrimPrefix(line, "[QUERY]: ")
	case strings.HasPrefix(line, "[ACTION]: "):
		parseActionLine(cur, line)
	case strings.HasPrefix(line, "[STATUS]: "):
		cur.Status = Status(strings.TrimPrefix(line, "[STATUS]: "))
	case strings.HasPrefix(line, "[REASON]: "):
		cur.Reason = strings.TrimPrefix(line, "[REASON]: ")
	}
}

func parseHeader(line string) *Record {
	parts := strings.SplitN(line, " | ", 3)
	rec := &Record{}
	if len(parts) == 3 {
		rec.Time, _ = time.ParseInLocation(timeLayout, parts[0], time.Local)
		rec.ID = strings.TrimPrefix(parts[2], "id=")
	}
	return rec
}

// parseActionLine keeps the first occurrence of each key so text inside a
// target cannot override an earlier field.
func parseActionLine(rec *Record, line string) {
	for _, field := range strings.Split(line, " | ") {
		key, val, ok := strings.Cut(field, ": ")
		if !ok {
			continue
		}
		var dst *string
		switch key {
		case "[ACTION]":
			dst = &rec.Action
		case "[RISK]":
			dst = &rec.Risk
		case "[TARGET]":
			dst = &rec.Target
		case "[VALUE]":
			dst = &rec.Value
		}
		if dst != nil && *dst == "" {
			*dst = val
		}
	}
}
