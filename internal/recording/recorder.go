// Package recording writes shell transcripts in asciicast v2 format.
package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/acolita/mongo-shell-mcp/internal/ports"
)

// Ext is the file extension of a transcript.
const Ext = ".cast"

// Recorder records one shell child's I/O in asciicast v2 format.
// See: https://docs.asciinema.org/manual/asciicast/v2/
type Recorder struct {
	mu        sync.Mutex
	file      ports.FileHandle
	path      string
	startTime time.Time
	closed    bool
	clock     ports.Clock
}

// Header is the asciicast v2 header.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is an asciicast v2 event [time, type, data].
type Event struct {
	Time float64 `json:"-"`
	Type string  `json:"-"`
	Data string  `json:"-"`
}

// MarshalJSON encodes the event as a three element array.
func (e Event) MarshalJSON() ([]byte, error) {
	return sonic.ConfigStd.Marshal([]any{e.Time, e.Type, e.Data})
}

// Meta describes the child a transcript belongs to.
type Meta struct {
	SessionID string
	Shell     string // binary path, recorded as SHELL
	Term      string
	Width     int
	Height    int
}

// FileName returns the transcript name for a session started at t. Names
// sort chronologically.
func FileName(t time.Time, sessionID string) string {
	return t.UTC().Format("20060102T150405.000") + "_" + sessionID + Ext
}

// NewRecorder creates a transcript under dir and writes its header.
func NewRecorder(dir string, meta Meta, fs ports.FileSystem, clock ports.Clock) (*Recorder, error) {
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	now := clock.Now()
	fullPath := filepath.Join(dir, FileName(now, meta.SessionID))

	file, err := fs.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	r := &Recorder{
		file:      file,
		path:      fullPath,
		startTime: now,
		clock:     clock,
	}

	header := Header{
		Version:   2,
		Width:     meta.Width,
		Height:    meta.Height,
		Timestamp: now.Unix(),
		Title:     "mongo " + meta.SessionID,
		Env: map[string]string{
			"SHELL": meta.Shell,
			"TERM":  meta.Term,
		},
	}

	headerJSON, err := sonic.ConfigStd.Marshal(header)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	if _, err := file.Write(append(headerJSON, '\n')); err != nil {
		file.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return r, nil
}

// RecordOutput records text the shell printed.
func (r *Recorder) RecordOutput(data string) error {
	return r.record("o", data)
}

// RecordInput records a command sent to the shell. A trailing newline is
// added as the terminal would have received it.
func (r *Recorder) RecordInput(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	return r.record("i", line)
}

// RecordMarker records a marker event, e.g. a restart.
func (r *Recorder) RecordMarker(label string) error {
	return r.record("m", label)
}

func (r *Recorder) record(eventType, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	event := Event{
		Time: r.clock.Now().Sub(r.startTime).Seconds(),
		Type: eventType,
		Data: data,
	}

	eventJSON, err := sonic.ConfigStd.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := r.file.Write(append(eventJSON, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// Close closes the transcript. Later records are ignored.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	return r.file.Close()
}

// Path returns the path to the transcript.
func (r *Recorder) Path() string {
	return r.path
}
