// Package credentials persists the Simkl OAuth token pair at rest,
// encrypted with nacl/secretbox under a machine-local key file. The
// authentication flow itself (device-code exchange) is an external
// collaborator per spec.md §1; this package is the load/persist half the
// core owns once a token has been obtained.
package credentials

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/nacl/secretbox"

	"simklscrobbler/internal/storage"
)

const (
	keyFile  = "credentials.key"
	dataFile = "credentials.enc"
	keySize  = 32
)

var ErrNoCredentials = errors.New("no stored credentials")

// Token is the OAuth credential pair for the Simkl API.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Store reads and writes the encrypted token file.
type Store struct {
	fs       afero.Fs
	keyPath  string
	dataPath string
}

// New prepares a Store rooted at appDataDir, generating a local encryption
// key on first use.
func New(fs afero.Fs, appDataDir string) (*Store, error) {
	s := &Store{
		fs:       fs,
		keyPath:  filepath.Join(appDataDir, keyFile),
		dataPath: filepath.Join(appDataDir, dataFile),
	}

	if _, err := s.loadOrCreateKey(); err != nil {
		return nil, fmt.Errorf("prepare credential key: %w", err)
	}

	return s, nil
}

func (s *Store) loadOrCreateKey() (*[keySize]byte, error) {
	raw, err := afero.ReadFile(s.fs, s.keyPath)
	if err == nil && len(raw) == keySize {
		var key [keySize]byte
		copy(key[:], raw)
		return &key, nil
	}

	var key [keySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	if err := storage.WriteBytes(s.fs, s.keyPath, key[:], 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}

	return &key, nil
}

// Save encrypts and atomically persists token.
func (s *Store) Save(token Token) error {
	key, err := s.loadOrCreateKey()
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	n, err := GenerateRandomNonce()
	if err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	var nonceArr [fileNonceSize]byte
	copy(nonceArr[:], n.ToBytes())

	sealed := secretbox.Seal(nonceArr[:], plaintext, &nonceArr, key)

	return storage.WriteBytes(s.fs, s.dataPath, sealed, 0o600)
}

// Load decrypts and returns the persisted token. It returns ErrNoCredentials
// when nothing has been saved yet.
func (s *Store) Load() (Token, error) {
	raw, err := afero.ReadFile(s.fs, s.dataPath)
	if err != nil {
		return Token{}, ErrNoCredentials
	}
	if len(raw) < fileNonceSize {
		return Token{}, fmt.Errorf("credential file truncated")
	}

	key, err := s.loadOrCreateKey()
	if err != nil {
		return Token{}, err
	}

	var nonceArr [fileNonceSize]byte
	copy(nonceArr[:], raw[:fileNonceSize])

	plaintext, ok := secretbox.Open(nil, raw[fileNonceSize:], &nonceArr, key)
	if !ok {
		return Token{}, fmt.Errorf("decrypt credentials: authentication failed")
	}

	var token Token
	if err := json.Unmarshal(plaintext, &token); err != nil {
		return Token{}, fmt.Errorf("decode token: %w", err)
	}

	return token, nil
}

// Clear removes the persisted token (not the key file).
func (s *Store) Clear() error {
	if err := s.fs.Remove(s.dataPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
