package sinks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"eventd/pkg/events"
	"eventd/pkg/props"
)

var (
	ErrOpenFile   = errors.New("sinks: open jsonl file")
	ErrWriteLine  = errors.New("sinks: write jsonl line")
	ErrCloseFile  = errors.New("sinks: close jsonl file")
	ErrSinkClosed = errors.New("sinks: sink closed")
)

// Line is the record written for each event.
type Line struct {
	Time       time.Time        `json:"time"`
	Event      events.Name      `json:"event"`
	Properties props.Properties `json:"properties"`
	UserID     *string          `json:"user_id,omitempty"`
}

// JSONL appends one JSON object per event to a file. It is safe for
// concurrent use. Write failures are kept and reported by Err; Send never
// fails.
type JSONL struct {
	Base

	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	userID  *string
	lastErr error
	now     func() time.Time
}

// NewJSONL opens path for appending, creating it if needed. The parent
// directory must exist.
func NewJSONL(path string, opts Options) (*JSONL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFile, err)
	}
	j := &JSONL{file: f, enc: json.NewEncoder(f), now: time.Now}
	opts.apply(&j.Base, "jsonl", false)
	return j, nil
}

func (j *JSONL) Send(name events.Name, properties props.Properties) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		j.lastErr = ErrSinkClosed
		return
	}
	line := Line{Time: j.now().UTC(), Event: name, Properties: properties, UserID: j.userID}
	if err := j.enc.Encode(line); err != nil {
		j.lastErr = fmt.Errorf("%w: %w", ErrWriteLine, err)
	}
}

func (j *JSONL) SetUserID(id *string) {
	j.mu.Lock()
	j.userID = id
	j.mu.Unlock()
}

// Err returns the most recent write failure, if any.
func (j *JSONL) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Close syncs and closes the file. Later sends are discarded.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	_ = j.file.Sync()
	err := j.file.Close()
	j.file = nil
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCloseFile, err)
	}
	return nil
}
