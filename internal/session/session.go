// Package session records research runs as JSONL transcripts.
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Status constants for sessions.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Event types for the session log.
const (
	EventRunStart  = "run_start"
	EventRunEnd    = "run_end"
	EventStepStart = "step_start"
	EventStepEnd   = "step_end"
	EventWarning   = "warning"
	EventAsk       = "ask_user" // Clarification prompt and the answer given
)

// ErrNotFound is returned when no transcript exists for an ID.
var ErrNotFound = errors.New("session not found")

// Session is the transcript of one research run.
type Session struct {
	ID                  string    `json:"id"`
	Question            string    `json:"question"`
	ClarificationAnswer string    `json:"clarification_answer,omitempty"`
	Status              string    `json:"status"`
	Output              string    `json:"output,omitempty"`
	Error               string    `json:"error,omitempty"`
	Attempts            int       `json:"attempts,omitempty"`
	Events              []Event   `json:"events"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	seqCounter uint64
	mu         sync.Mutex
}

// Event is a single entry in the session log.
type Event struct {
	SeqID     uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Step    string                 `json:"step,omitempty"`
	Content string                 `json:"content,omitempty"`
	Fields  map[string]interface{} `json:"fields,omitempty"`

	// Outcome
	Success    *bool  `json:"success,omitempty"` // nil = in progress
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

func (s *Session) nextSeqID() uint64 {
	return atomic.AddUint64(&s.seqCounter, 1)
}

// CurrentSeqID returns the last used sequence ID, or 0 before any event.
func (s *Session) CurrentSeqID() uint64 {
	return atomic.LoadUint64(&s.seqCounter)
}

// AddEvent appends event with the next sequence number.
func (s *Session) AddEvent(event Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.SeqID = s.nextSeqID()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.Events = append(s.Events, event)
	s.UpdatedAt = time.Now()
	return event.SeqID
}

// Store is the interface for session persistence.
type Store interface {
	Save(sess *Session) error
	Load(id string) (*Session, error)
}

// SessionManager is the interface for session management operations.
type SessionManager interface {
	Create(id, question string) (*Session, error)
	Update(sess *Session) error
	Get(id string) (*Session, error)
}

// Manager manages sessions on top of a Store.
type Manager struct {
	store Store
	mu    sync.Mutex
}

// NewManager creates a new session manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create starts a transcript for run id.
func (m *Manager) Create(id, question string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	sess := &Session{
		ID:        id,
		Question:  question,
		Status:    StatusRunning,
		Events:    []Event{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	return m.store.Load(id)
}

// Update saves changes to a session.
func (m *Manager) Update(sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess.UpdatedAt = time.Now()
	return m.store.Save(sess)
}

// JSONL record types
const (
	RecordTypeHeader = "header" // Run metadata (first line)
	RecordTypeEvent  = "event"
	RecordTypeFooter = "footer" // Final state (last line)
)

// JSONLRecord is one transcript line, discriminated by _type.
type JSONLRecord struct {
	RecordType string `json:"_type"`

	// Header
	ID                  string    `json:"id,omitempty"`
	Question            string    `json:"question,omitempty"`
	ClarificationAnswer string    `json:"clarification_answer,omitempty"`
	CreatedAt           time.Time `json:"created_at,omitempty"`

	*Event `json:",omitempty"`

	// Footer
	Status    string    `json:"status,omitempty"`
	Output    string    `json:"output,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FileStore implements Store as one JSONL file per session.
type FileStore struct {
	dir string
}

// NewFileStore creates a new file-based store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the transcript path for id.
func (s *FileStore) Path(id string) string {
	return FilePath(s.dir, id)
}

// FilePath returns where a transcript for id lives under dir.
func FilePath(dir, id string) string {
	return filepath.Join(dir, id+".jsonl")
}

// Save rewrites the session's transcript.
func (s *FileStore) Save(sess *Session) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	f, err := os.Create(s.Path(sess.ID))
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return Write(f, sess)
}

// Write encodes sess as JSONL to w.
func Write(w io.Writer, sess *Session) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	header := JSONLRecord{
		RecordType:          RecordTypeHeader,
		ID:                  sess.ID,
		Question:            sess.Question,
		ClarificationAnswer: sess.ClarificationAnswer,
		CreatedAt:           sess.CreatedAt,
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	for i := range sess.Events {
		evt := sess.Events[i]
		if err := enc.Encode(JSONLRecord{RecordType: RecordTypeEvent, Event: &evt}); err != nil {
			return fmt.Errorf("failed to marshal event %d: %w", evt.SeqID, err)
		}
	}

	footer := JSONLRecord{
		RecordType: RecordTypeFooter,
		Status:     sess.Status,
		Output:     sess.Output,
		Attempts:   sess.Attempts,
		UpdatedAt:  sess.UpdatedAt,
	}
	if sess.Error != "" {
		footer.Event = &Event{Error: sess.Error}
	}
	if err := enc.Encode(footer); err != nil {
		return fmt.Errorf("failed to marshal footer: %w", err)
	}
	return bw.Flush()
}

// Load reads a session by ID.
func (s *FileStore) Load(id string) (*Session, error) {
	sess, err := LoadFile(s.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, err
}

// LoadFile reads a transcript from path.
func LoadFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a JSONL transcript.
func Read(r io.Reader) (*Session, error) {
	sess := &Session{Events: []Event{}}

	// bufio.Reader rather than Scanner: event lines can be long.
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading JSONL: %w", err)
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if parseErr := parseJSONLLine(trimmed, sess); parseErr != nil {
				return nil, parseErr
			}
		}
		if err == io.EOF {
			break
		}
	}

	if len(sess.Events) > 0 {
		sess.seqCounter = sess.Events[len(sess.Events)-1].SeqID
	}
	return sess, nil
}

func parseJSONLLine(line []byte, sess *Session) error {
	var record JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("failed to parse JSONL line: %w", err)
	}

	switch record.RecordType {
	case RecordTypeHeader:
		sess.ID = record.ID
		sess.Question = record.Question
		sess.ClarificationAnswer = record.ClarificationAnswer
		sess.CreatedAt = record.CreatedAt

	case RecordTypeEvent:
		if record.Event != nil {
			sess.Events = append(sess.Events, *record.Event)
		}

	case RecordTypeFooter:
		sess.Status = record.Status
		sess.Output = record.Output
		sess.Attempts = record.Attempts
		sess.UpdatedAt = record.UpdatedAt
		if record.Event != nil {
			sess.Error = record.Event.Error
		}
	}
	return nil
}

// FileManager wraps FileStore to implement SessionManager.
type FileManager struct {
	*Manager
	store *FileStore
}

// NewFileManager creates a file-based session manager rooted at dir.
func NewFileManager(dir string) (*FileManager, error) {
	store, err := NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	return &FileManager{Manager: NewManager(store), store: store}, nil
}

// Path returns where the transcript for id is written.
func (m *FileManager) Path(id string) string {
	return m.store.Path(id)
}
