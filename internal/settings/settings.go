// Package settings persists local preferences and the subject taxonomy in a JSON file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mcqdb/internal/model"
)

// DefaultFile is the settings file name used when none is configured.
const DefaultFile = "mcq_config_enhanced.json"

// ErrEmptyName is returned when adding a blank subject, topic or classification.
var ErrEmptyName = errors.New("name must not be empty")

type fileData struct {
	SubjectData       map[string]model.Subject `json:"subject_data"`
	Username          string                   `json:"username,omitempty"`
	AdminPasswordHash string                   `json:"admin_password_hash,omitempty"`
}

// Settings is the local settings file. It is safe for concurrent use.
type Settings struct {
	path string

	mu   sync.RWMutex
	data fileData
}

// Load reads the settings at path, creating the file with defaults when it
// does not exist.
func Load(path string) (*Settings, error) {
	s := &Settings{path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.data.SubjectData = DefaultSubjects()
		if err := s.save(); err != nil {
			return nil, err
		}
		slog.Info("created settings file", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if s.data.SubjectData == nil {
		s.data.SubjectData = DefaultSubjects()
	}
	return s, nil
}

// InMemory returns settings that are never written to disk.
func InMemory() *Settings {
	return &Settings{data: fileData{SubjectData: DefaultSubjects()}}
}

// save writes the file. Callers hold mu.
func (s *Settings) save() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Path returns the file the settings are stored in, or "" for in-memory settings.
func (s *Settings) Path() string { return s.path }

// Subjects returns all subject names sorted.
func (s *Settings) Subjects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data.SubjectData))
	for name := range s.data.SubjectData {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasSubject reports whether the subject is known.
func (s *Settings) HasSubject(subject string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data.SubjectData[normalizeSubject(subject)]
	return ok
}

// Topics returns the topics of a subject, or nil for an unknown subject.
func (s *Settings) Topics(subject string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.SubjectData[normalizeSubject(subject)].Topics)
}

// Classifications returns the classifications of a subject, or nil for an unknown subject.
func (s *Settings) Classifications(subject string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.SubjectData[normalizeSubject(subject)].Classifications)
}

// Taxonomy returns a copy of the whole subject map.
func (s *Settings) Taxonomy() map[string]model.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Subject, len(s.data.SubjectData))
	for name, sub := range s.data.SubjectData {
		out[name] = model.Subject{
			Topics:          slices.Clone(sub.Topics),
			Classifications: slices.Clone(sub.Classifications),
		}
	}
	return out
}

func normalizeSubject(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddSubject adds a subject. It reports false when the subject already exists.
func (s *Settings) AddSubject(name string) (bool, error) {
	name = normalizeSubject(name)
	if name == "" {
		return false, ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.SubjectData[name]; ok {
		return false, nil
	}
	s.data.SubjectData[name] = model.Subject{Topics: []string{}, Classifications: []string{}}
	return true, s.save()
}

// AddTopic adds a topic to a subject, creating the subject if needed.
// It reports false when the topic already exists.
func (s *Settings) AddTopic(subject, topic string) (bool, error) {
	return s.addItem(subject, topic, func(sub *model.Subject) *[]string { return &sub.Topics })
}

// AddClassification adds a classification to a subject, creating the subject if needed.
// It reports false when the classification already exists.
func (s *Settings) AddClassification(subject, classification string) (bool, error) {
	return s.addItem(subject, classification, func(sub *model.Subject) *[]string { return &sub.Classifications })
}

func (s *Settings) addItem(subject, item string, list func(*model.Subject) *[]string) (bool, error) {
	subject = normalizeSubject(subject)
	item = strings.TrimSpace(item)
	if subject == "" || item == "" {
		return false, ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.data.SubjectData[subject]
	items := list(&sub)
	if slices.Contains(*items, item) {
		return false, nil
	}
	*items = append(*items, item)
	if sub.Topics == nil {
		sub.Topics = []string{}
	}
	if sub.Classifications == nil {
		sub.Classifications = []string{}
	}
	s.data.SubjectData[subject] = sub
	return true, s.save()
}

// Username returns the remembered session username.
func (s *Settings) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Username
}

// SetUsername remembers the session username.
func (s *Settings) SetUsername(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Username = strings.TrimSpace(username)
	return s.save()
}

// SetAdminPassword stores a bcrypt hash of the admin password.
func (s *Settings) SetAdminPassword(password string) error {
	if password == "" {
		return errors.New("admin password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.AdminPasswordHash = string(hash)
	return s.save()
}

// HasAdminPassword reports whether an admin password has been configured.
func (s *Settings) HasAdminPassword() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AdminPasswordHash != ""
}

// CheckAdminPassword reports whether password matches the stored hash.
func (s *Settings) CheckAdminPassword(password string) bool {
	s.mu.RLock()
	hash := s.data.AdminPasswordHash
	s.mu.RUnlock()
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
