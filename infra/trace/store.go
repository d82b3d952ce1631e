// Package trace keeps a replayable JSONL trace of published snapshots in
// size-rotated files.
package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/homesim/core/factory"
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/core/sink"
)

// Record kinds.
const (
	KindSnapshot = "snapshot"
	KindDay      = "day"
)

// Record is one line of the trace.
type Record struct {
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	Kind      string                 `json:"kind"`
	Snapshot  *model.Snapshot        `json:"snapshot,omitempty"`
	Day       *simulation.DaySummary `json:"day,omitempty"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	SessionID string
	Kind      string
	Day       int
	Start     time.Time
	End       time.Time
}

func (q Query) match(r Record) bool {
	if q.SessionID != "" && r.SessionID != q.SessionID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.Day != 0 {
		switch {
		case r.Snapshot != nil && r.Snapshot.Day != q.Day:
			return false
		case r.Day != nil && r.Day.Day != q.Day:
			return false
		}
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return true
}

// Config configures the rotating file.
type Config struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Store appends records to a JSONL file with automatic rotation. It is a
// snapshot sink.
type Store struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
	now    func() time.Time
}

// NewStore creates a store with rotation options in megabytes and days.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = "homesim-trace.jsonl"
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return &Store{logger: lj, path: cfg.Path, now: time.Now}, nil
}

// Append writes the record and triggers rotation if needed.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.logger).Encode(rec)
}

// RecordSnapshot appends a snapshot record.
func (s *Store) RecordSnapshot(sessionID string, snap model.Snapshot) error {
	return s.Append(context.Background(), Record{SessionID: sessionID, Kind: KindSnapshot, Snapshot: &snap})
}

// RecordDaySummary appends a day record.
func (s *Store) RecordDaySummary(sessionID string, sum simulation.DaySummary) error {
	return s.Append(context.Background(), Record{SessionID: sessionID, Kind: KindDay, Day: &sum})
}

// files lists the active file and its rotated backups, oldest first.
func (s *Store) files() ([]string, error) {
	ext := filepath.Ext(s.path)
	prefix := strings.TrimSuffix(s.path, ext)
	backups, err := filepath.Glob(prefix + "-*" + ext)
	if err != nil {
		return nil, err
	}
	// lumberjack backup names embed a sortable timestamp
	sort.Strings(backups)
	if _, err := os.Stat(s.path); err == nil {
		backups = append(backups, s.path)
	}
	return backups, nil
}

// Query reads every trace file, including rotated ones, in write order.
func (s *Store) Query(ctx context.Context, q Query) ([]Record, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	var res []Record
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			var r Record
			if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
				continue
			}
			if q.match(r) {
				res = append(res, r)
			}
		}
		_ = file.Close()
	}
	return res, nil
}

// Close closes the underlying writer.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger.Close()
}

// Register adds the "jsonl" sink to reg. Every created store is passed to
// onCreate so the API can serve its trace.
func Register(reg *sink.Registry, onCreate func(*Store)) error {
	return reg.Register("jsonl", func(conf map[string]any) (sink.Sink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		st, err := NewStore(c)
		if err != nil {
			return nil, err
		}
		if onCreate != nil {
			onCreate(st)
		}
		return st, nil
	})
}
