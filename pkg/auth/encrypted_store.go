package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// PassphraseEnvVar overrides the generated file passphrase
const PassphraseEnvVar = "WORKSHOPCAST_PASSPHRASE"

const (
	envelopeVersion = 1
	saltSize        = 32
	keySize         = 32
	iterations      = 100000
)

// ErrDecrypt is returned when the store file cannot be opened with the
// current passphrase.
var ErrDecrypt = errors.New("cannot decrypt session file")

// EncryptedFileStore implements SessionStore over a single file sealed with
// AES-GCM under a PBKDF2-derived key.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// envelope is the on-disk form. Sessions are sealed as one JSON object keyed
// by session name; the salt is kept across rewrites.
type envelope struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// NewEncryptedFileStore creates an encrypted store at path. The passphrase
// comes from PassphraseEnvVar or a generated file beside the store.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(filepath.Join(dir, ".passphrase"))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store saves the session, replacing one with the same name.
func (e *EncryptedFileStore) Store(session *Session) error {
	if session == nil || session.Name == "" {
		return ErrInvalidSession
	}
	return e.mutate(func(sessions map[string]Session) error {
		sessions[session.Name] = *session
		return nil
	})
}

// Retrieve gets the session by name.
func (e *EncryptedFileStore) Retrieve(name string) (*Session, error) {
	if name == "" {
		return nil, ErrInvalidSession
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	sessions, _, err := e.read()
	if err != nil {
		return nil, err
	}
	session, ok := sessions[name]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// List returns all stored sessions.
func (e *EncryptedFileStore) List() ([]*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sessions, _, err := e.read()
	if err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(sessions))
	for _, session := range sessions {
		s := session
		out = append(out, &s)
	}
	return out, nil
}

// Delete removes the session. Removing the last one removes the file.
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidSession
	}
	return e.mutate(func(sessions map[string]Session) error {
		if _, ok := sessions[name]; !ok {
			return ErrSessionNotFound
		}
		delete(sessions, name)
		return nil
	})
}

// Exists reports whether the session is stored.
func (e *EncryptedFileStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

func (e *EncryptedFileStore) mutate(change func(map[string]Session) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sessions, salt, err := e.read()
	if err != nil {
		return err
	}
	if err := change(sessions); err != nil {
		return err
	}
	if len(sessions) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		return nil
	}
	return e.write(sessions, salt)
}

// read returns the stored sessions and the salt in use. A missing file is an
// empty store with no salt yet.
func (e *EncryptedFileStore) read() (map[string]Session, []byte, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return map[string]Session{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, nil, fmt.Errorf("unsupported session file version %d", env.Version)
	}

	plain, err := open(env.Sealed, e.key(env.Salt))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	sessions := map[string]Session{}
	if err := json.Unmarshal(plain, &sessions); err != nil {
		return nil, nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return sessions, env.Salt, nil
}

func (e *EncryptedFileStore) write(sessions map[string]Session, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	sealed, err := seal(plain, e.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt sessions: %w", err)
	}

	content, err := json.MarshalIndent(envelope{
		Version:  envelopeVersion,
		Salt:     salt,
		Sealed:   sealed,
		Modified: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// loadPassphrase returns PassphraseEnvVar, or the passphrase kept in path,
// generating and saving one on first use.
func loadPassphrase(path string) (string, error) {
	if pass := os.Getenv(PassphraseEnvVar); pass != "" {
		return pass, nil
	}
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

// seal encrypts with AES-GCM, prefixing the nonce.
func seal(plain, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func open(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
