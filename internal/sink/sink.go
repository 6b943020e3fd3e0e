// Package sink persists generated client traces and the run summary.
package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/iot-tracegen/core"
	"github.com/signalsfoundry/iot-tracegen/model"
)

// SummaryFile is the name of the run summary inside a DirSink.
const SummaryFile = "00_summary.txt"

// ClientTrace is one client's trace plus the identity used to name it.
type ClientTrace struct {
	ClientID string
	Broker   string
	Profile  string
	Machine  int
	Trace    core.Trace
}

// FileName returns <broker>-<machine>_<profile>_<client>.csv.
func (c ClientTrace) FileName() string {
	return fmt.Sprintf("%s-%d_%s_%s.csv", sanitize(c.Broker), c.Machine, sanitize(c.Profile), c.ClientID)
}

// Sink receives traces from concurrent workers. Implementations must be
// safe for concurrent Write calls.
type Sink interface {
	Write(ctx context.Context, t ClientTrace) error
	WriteSummary(ctx context.Context, setup []byte, s core.Summary) error
	Close() error
}

// DirOptions configures a DirSink.
type DirOptions struct {
	// Clean removes existing *.csv files and the summary before writing.
	Clean bool
}

// DirSink writes one file per client into a directory.
type DirSink struct {
	dir    string
	mu     sync.Mutex
	closed bool
}

// NewDirSink creates dir if needed and optionally clears previous output.
func NewDirSink(dir string, opts DirOptions) (*DirSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("sink: output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", dir, err)
	}
	if opts.Clean {
		if err := cleanDir(dir); err != nil {
			return nil, err
		}
	}
	return &DirSink{dir: dir}, nil
}

// Dir returns the output directory.
func (s *DirSink) Dir() string { return s.dir }

func (s *DirSink) Write(ctx context.Context, t ClientTrace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return errors.New("sink: write after close")
	}
	path := filepath.Join(s.dir, t.FileName())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sink: create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := writeActions(bw, t.Trace.Actions); err != nil {
		f.Close()
		return fmt.Errorf("sink: write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("sink: flush %s: %w", path, err)
	}
	return f.Close()
}

func (s *DirSink) WriteSummary(ctx context.Context, setup []byte, sum core.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.dir, SummaryFile)
	if err := os.WriteFile(path, []byte(FormatSummary(setup, sum)), 0o644); err != nil {
		return fmt.Errorf("sink: write summary: %w", err)
	}
	return nil
}

func (s *DirSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *DirSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MemorySink keeps traces in memory, keyed by client ID.
type MemorySink struct {
	mu      sync.RWMutex
	traces  map[string]ClientTrace
	setup   []byte
	summary *core.Summary
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{traces: make(map[string]ClientTrace)}
}

func (m *MemorySink) Write(ctx context.Context, t ClientTrace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.traces[t.ClientID]; exists {
		return fmt.Errorf("sink: duplicate client %q", t.ClientID)
	}
	m.traces[t.ClientID] = t
	return nil
}

func (m *MemorySink) WriteSummary(_ context.Context, setup []byte, s core.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setup = append([]byte(nil), setup...)
	m.summary = &s
	return nil
}

func (m *MemorySink) Close() error { return nil }

// Traces returns all stored traces ordered by file name.
func (m *MemorySink) Traces() []ClientTrace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ClientTrace, 0, len(m.traces))
	for _, t := range m.traces {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName() < out[j].FileName() })
	return out
}

// Summary returns the stored summary, if any.
func (m *MemorySink) Summary() (core.Summary, []byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.summary == nil {
		return core.Summary{}, nil, false
	}
	return *m.summary, m.setup, true
}

// FormatSummary renders the summary file: the setup block followed by the
// data set characteristics.
func FormatSummary(setup []byte, sum core.Summary) string {
	var b strings.Builder
	b.WriteString("Setup:\n")
	b.Write(setup)
	if len(setup) > 0 && setup[len(setup)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(sum.String())
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
	return b.String()
}

func writeActions(w *bufio.Writer, actions []model.Action) error {
	rw := NewRecordWriter(w)
	if err := rw.WriteHeader(); err != nil {
		return err
	}
	for _, a := range actions {
		if err := rw.Write(a); err != nil {
			return err
		}
	}
	return rw.Flush()
}

func cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("sink: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".csv" && name != SummaryFile {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("sink: clean %s: %w", name, err)
		}
	}
	return nil
}

// sanitize keeps names usable as file name components.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ', '_':
			return '-'
		}
		return r
	}, s)
}
