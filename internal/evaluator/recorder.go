package evaluator

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MetricsFile is the log file name inside the metrics directory.
const MetricsFile = "rag_metrics.jsonl"

const maxLineSize = 4 * 1024 * 1024

// Recorder appends records to a JSON Lines file.
type Recorder struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder writing to dir/rag_metrics.jsonl. The
// directory is created on first Append.
func NewRecorder(dir string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		path:   filepath.Join(dir, MetricsFile),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the log file location.
func (r *Recorder) Path() string {
	return r.path
}

// Append stamps rec if it has no timestamp and writes it as one line. It
// returns the log location.
func (r *Recorder) Append(rec Record) (string, error) {
	if rec.Timestamp == "" {
		rec.Timestamp = r.now().Format(TimestampLayout)
	}
	if rec.Sources == nil {
		rec.Sources = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return "", fmt.Errorf("create metrics dir: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open metrics log: %w", err)
	}
	// One write per record keeps lines whole under O_APPEND.
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("append record: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close metrics log: %w", err)
	}

	r.logger.Debug("evaluation recorded",
		zap.String("path", r.path),
		zap.Float64("top_score", rec.TopScore),
		zap.Bool("error", rec.Error))
	return r.path, nil
}

// Tail returns up to the last n records and the total number of readable
// records. Malformed lines are skipped. A missing log yields no records.
func (r *Recorder) Tail(n int) ([]Record, int, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open metrics log: %w", err)
	}
	defer f.Close()

	var (
		ring    []Record
		total   int
		skipped int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		total++
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read metrics log: %w", err)
	}

	if skipped > 0 {
		r.logger.Warn("skipped malformed metrics lines", zap.Int("count", skipped))
	}
	return ring, total, nil
}
