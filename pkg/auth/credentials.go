package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Session is a persisted messaging credential. For the Bot API the token is
// the whole session.
type Session struct {
	Name         string    `json:"name"`
	Token        string    `json:"token"`
	LastModified time.Time `json:"last_modified"`
}

// SessionStore is the interface for storing and retrieving sessions
type SessionStore interface {
	// Store saves a session under its name
	Store(session *Session) error

	// Retrieve gets the session with the given name
	Retrieve(name string) (*Session, error)

	// List returns all stored sessions
	List() ([]*Session, error)

	// Delete removes the named session
	Delete(name string) error

	// Exists checks if a session exists for a name
	Exists(name string) bool
}

// Manager handles session storage with fallback mechanisms
type Manager struct {
	stores []SessionStore
}

// NewManager creates a session manager backed by the system keyring, an
// encrypted file and the environment, in that order.
func NewManager() (*Manager, error) {
	var stores []SessionStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores
func NewManagerWithStores(stores ...SessionStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the session using the first store that accepts it
func (m *Manager) Store(session *Session) error {
	if session == nil || session.Name == "" {
		return errors.New("session name is required")
	}
	session.Token = strings.TrimSpace(session.Token)
	if session.Token == "" {
		return errors.New("session token is required")
	}

	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(session)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return errors.New("no available session stores")
}

// Retrieve gets the session from the first store that has it
func (m *Manager) Retrieve(name string) (*Session, error) {
	for _, store := range m.stores {
		if session, err := store.Retrieve(name); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
}

// Exists reports whether any store holds the named session
func (m *Manager) Exists(name string) bool {
	for _, store := range m.stores {
		if store.Exists(name) {
			return true
		}
	}
	return false
}

// List returns all stored sessions, keeping the most recent copy per name
func (m *Manager) List() ([]*Session, error) {
	byName := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, session := range sessions {
			if existing, ok := byName[session.Name]; !ok || session.LastModified.After(existing.LastModified) {
				byName[session.Name] = session
			}
		}
	}

	result := make([]*Session, 0, len(byName))
	for _, session := range byName {
		result = append(result, session)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Delete removes the session from every store
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "workshopcast")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "workshopcast")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "workshopcast")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "workshopcast")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeSession returns a copy of the session with the token masked
func SanitizeSession(session *Session) *Session {
	if session == nil {
		return nil
	}

	return &Session{
		Name:         session.Name,
		Token:        MaskToken(session.Token),
		LastModified: session.LastModified,
	}
}

// MaskToken masks all but the first 4 and last 4 characters of a token
func MaskToken(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("session store unavailable")
)
