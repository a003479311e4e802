// Package report records machine-readable scan history and renders
// human-readable summaries of the library state.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventScan        EventType = "scan"
	EventFingerprint EventType = "fingerprint"
	EventMatch       EventType = "match"
	EventVerdict     EventType = "verdict"
	EventPrompt      EventType = "prompt"
	EventCommit      EventType = "commit"
	EventSkip        EventType = "skip"
	EventError       EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the scan pipeline
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	Path         string            `json:"path,omitempty"`
	MatchPath    string            `json:"match_path,omitempty"`
	Similarity   float64           `json:"similarity,omitempty"`
	QualityScore int64             `json:"quality_score,omitempty"`
	Verdict      string            `json:"verdict,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level.
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogFingerprint logs a fingerprint computation event
func (l *EventLogger) LogFingerprint(path string, durationSec int, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level: level,
		Event: EventFingerprint,
		Path:  path,
		Error: errMsg,
		Extra: map[string]string{
			"duration_sec": fmt.Sprintf("%d", durationSec),
		},
	})
}

// LogMatch logs the best candidate found for a file
func (l *EventLogger) LogMatch(path, matchPath string, similarity float64) error {
	return l.Log(&Event{
		Level:      LevelInfo,
		Event:      EventMatch,
		Path:       path,
		MatchPath:  matchPath,
		Similarity: similarity,
	})
}

// LogVerdict logs the decision for a file
func (l *EventLogger) LogVerdict(path, matchPath, verdict string, similarity float64, score int64) error {
	return l.Log(&Event{
		Level:        LevelInfo,
		Event:        EventVerdict,
		Path:         path,
		MatchPath:    matchPath,
		Verdict:      verdict,
		Similarity:   similarity,
		QualityScore: score,
	})
}

// LogSkip logs a file that was not processed
func (l *EventLogger) LogSkip(path, reason string) error {
	return l.Log(&Event{
		Level:  LevelDebug,
		Event:  EventSkip,
		Path:   path,
		Reason: reason,
	})
}

// LogCommit logs a committed library change
func (l *EventLogger) LogCommit(path, verdict string) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventCommit,
		Path:    path,
		Verdict: verdict,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
