package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Recorder appends every received record, plus any region markers sent by
// the chart, to a per-session JSONL file. The file is created lazily on the
// first record so an idle server leaves nothing behind.
type Recorder struct {
	dir     string
	session string

	mu     sync.Mutex
	f      *os.File
	path   string
	region string
}

// NewRecorder creates a Recorder writing under dir.
func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir, session: uuid.New().String()}
}

// Path returns the session file path, or "" before the first append.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// SetRegion updates the region label attached to subsequent records and
// writes a marker line.
func (r *Recorder) SetRegion(region string, ts float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.region = region
	return r.writeLocked(map[string]interface{}{
		"event":  "region",
		"region": region,
		"ts":     ts,
	})
}

// Append records one score line. The raw JSON object is extended with the
// current region label.
func (r *Recorder) Append(line []byte) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(line, &obj); err != nil {
		// Not a record (e.g. a status line); nothing to persist.
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.region != "" {
		obj["region"] = r.region
	} else {
		obj["region"] = nil
	}
	return r.writeLocked(obj)
}

// Close closes the session file if one was opened.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *Recorder) writeLocked(obj map[string]interface{}) error {
	if r.f == nil {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
		path := filepath.Join(r.dir, fmt.Sprintf("data_%s.jsonl", r.session))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open session file: %w", err)
		}
		r.f = f
		r.path = path
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(r.f, "%s\n", data); err != nil {
		return fmt.Errorf("append session record: %w", err)
	}
	return nil
}
