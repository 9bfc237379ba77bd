package auth

import (
	"os"
	"strings"
	"time"
)

// TokenEnvVar holds a bot token supplied through the environment
const TokenEnvVar = "WORKSHOPCAST_BOT_TOKEN"

// EnvironmentStore implements SessionStore over TokenEnvVar. The token is
// served for any session name.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based session store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(session *Session) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment token under the requested name
func (e *EnvironmentStore) Retrieve(name string) (*Session, error) {
	token := strings.TrimSpace(os.Getenv(TokenEnvVar))
	if token == "" {
		return nil, ErrSessionNotFound
	}

	if name == "" {
		name = "env"
	}

	return &Session{
		Name:         name,
		Token:        token,
		LastModified: time.Now(),
	}, nil
}

// List returns a single session if the variable is set
func (e *EnvironmentStore) List() ([]*Session, error) {
	session, err := e.Retrieve("")
	if err != nil {
		return []*Session{}, nil
	}
	return []*Session{session}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment token is set
func (e *EnvironmentStore) Exists(name string) bool {
	return strings.TrimSpace(os.Getenv(TokenEnvVar)) != ""
}
