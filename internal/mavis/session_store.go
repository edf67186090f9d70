package mavis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// SessionCookie is one cookie of a stored session.
type SessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session is the opaque credential returned by login.
type Session struct {
	Username  string          `json:"username,omitempty"`
	Cookies   []SessionCookie `json:"cookies,omitempty"`
	Token     string          `json:"token,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// Empty reports whether the session carries no credential.
func (s Session) Empty() bool {
	return len(s.Cookies) == 0 && s.Token == ""
}

// HasCookie reports whether the session holds a cookie called name.
func (s Session) HasCookie(name string) bool {
	for _, c := range s.Cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (s Session) clone() Session {
	out := s
	out.Cookies = append([]SessionCookie(nil), s.Cookies...)
	return out
}

// SessionStore abstracts persistence for login sessions.
type SessionStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// FileSessionStore keeps the session in a JSON file guarded by an advisory
// lock so concurrent CLI invocations do not interleave writes.
type FileSessionStore struct {
	path string
	lock *flock.Flock
}

// NewFileSessionStore builds a store at path; the lock lives beside it.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the session file location.
func (s *FileSessionStore) Path() string { return s.path }

// Load reads the session. A missing file resolves to an empty session.
func (s *FileSessionStore) Load() (Session, error) {
	if err := s.ensureDir(); err != nil {
		return Session{}, err
	}
	if err := s.lock.RLock(); err != nil {
		return Session{}, fmt.Errorf("lock mavis session: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("read mavis session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("decode mavis session: %w", err)
	}
	return session, nil
}

// Save writes the session with owner-only permissions.
func (s *FileSessionStore) Save(session Session) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mavis session: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock mavis session: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write mavis session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace mavis session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *FileSessionStore) Clear() error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock mavis session: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove mavis session: %w", err)
	}
	return nil
}

func (s *FileSessionStore) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure session directory: %w", err)
	}
	return nil
}
