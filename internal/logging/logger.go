// Package logging provides leveled logging and run tracing for dksim.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A RunLog recording every simulation run as JSONL (~/.dksim/runs.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/dksim/internal/simulation"
)

// LevelTrace is a custom slog level below Debug. At this level full request
// and tool payloads are logged.
const LevelTrace = slog.LevelDebug - 4

// RunLogFile is the name of the run log inside the dksim directory.
const RunLogFile = "runs.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything, for tests and callers
// that do not pass one.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RunEntry is one line of the run log.
type RunEntry struct {
	RunID  string            `json:"run_id"`
	Time   time.Time         `json:"time"`
	Source string            `json:"source"`
	Params simulation.Params `json:"params"`

	// PercentileCorrelation is the observed correlation of the two
	// percentile columns, when defined.
	PercentileCorrelation *float64 `json:"percentile_correlation,omitempty"`

	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// RunLog appends RunEntry lines to a JSONL file.
// It is safe for concurrent use. A nil RunLog is safe to use;
// all methods are no-ops on nil receiver.
type RunLog struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// NewRunLog opens dir/runs.jsonl for append.
// At "info" level (the default) it returns nil and creates nothing.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewRunLog(dir string, level string) *RunLog {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, RunLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &RunLog{file: f, now: time.Now}
}

// Record writes one entry and returns its run ID. A missing RunID or Time
// is filled in. Safe to call on nil receiver, in which case the returned
// ID is still valid so callers can use it elsewhere.
func (l *RunLog) Record(entry RunEntry) string {
	if entry.RunID == "" {
		entry.RunID = uuid.NewString()
	}
	if l == nil {
		return entry.RunID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return entry.RunID
	}
	if entry.Time.IsZero() {
		entry.Time = l.now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return entry.RunID
	}
	data = append(data, '\n')
	_, _ = l.file.Write(data)
	return entry.RunID
}

// Close closes the underlying file. Safe to call on nil receiver.
func (l *RunLog) Close() {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
