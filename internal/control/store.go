package control

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store is the durable control document: subsystem states plus the
// last-successful publish checkpoints, shared by every loop in the process.
// Read-modify-write is serialized by a single mutex; between independent
// processes the document is last-writer-wins, a known limitation.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates a store over the control document at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the control document location.
func (s *Store) Path() string {
	return s.path
}

// Init creates the document if it does not exist: every subsystem STOPPED,
// no checkpoints. An existing document is left untouched.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat control document: %w", err)
	}

	if err := s.write(NewDocument()); err != nil {
		return fmt.Errorf("create control document: %w", err)
	}
	s.logger.Info("[Control] Document created", "path", s.path)
	return nil
}

// ReadState returns a subsystem's control state. A missing or corrupt
// document reads as STOPPED; that is logged, never fatal.
func (s *Store) ReadState(service string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	if state, ok := doc.Services[service]; ok {
		return state
	}
	return StateStopped
}

// SetState updates one subsystem's state, preserving every other field.
func (s *Store) SetState(service string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	doc.Services[service] = state
	if err := s.write(doc); err != nil {
		return fmt.Errorf("set %s state: %w", service, err)
	}
	s.logger.Info("[Control] State updated", "service", service, "state", state)
	return nil
}

// Checkpoint returns the last successfully published hour for a channel.
// Absent, corrupt, or unparseable checkpoints read as "never published".
func (s *Store) Checkpoint(channel string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	raw, ok := doc.LastSuccessful[channel]
	if !ok || raw == "" {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(time.RFC3339, raw, time.Local)
	if err != nil {
		s.logger.Warn("[Control] Unparseable checkpoint, treating as never published",
			"channel", channel, "value", raw, "error", err)
		return time.Time{}, false
	}
	return ts, true
}

// WriteCheckpoint advances one channel's checkpoint, preserving every other
// document field.
func (s *Store) WriteCheckpoint(channel string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	doc.LastSuccessful[channel] = ts.Format(time.RFC3339)
	if err := s.write(doc); err != nil {
		return fmt.Errorf("write %s checkpoint: %w", channel, err)
	}
	return nil
}

// Snapshot returns a copy of the whole document for the status API.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// read loads the document, defaulting to the initial layout on any problem.
// Malformed persisted state is logged and treated as empty, never fatal.
func (s *Store) read() Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("[Control] Cannot read document, using defaults", "path", s.path, "error", err)
		}
		return NewDocument()
	}

	var doc Document
	if err := doc.UnmarshalJSON(data); err != nil {
		s.logger.Warn("[Control] Corrupt document, using defaults", "path", s.path, "error", err)
		return NewDocument()
	}
	if doc.Services == nil {
		doc.Services = NewDocument().Services
	}
	if doc.LastSuccessful == nil {
		doc.LastSuccessful = make(map[string]string)
	}
	return doc
}

func (s *Store) write(doc Document) error {
	data, err := doc.MarshalJSON()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".control-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
