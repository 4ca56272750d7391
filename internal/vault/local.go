package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for the file key derivation.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// localStore keeps per-user credentials in a single file encrypted with
// AES-GCM under a passphrase-derived key. Good enough for single-node
// deployments that do not run Vault; the passphrase never touches disk.
type localStore struct {
	path       string
	passphrase string

	mu sync.Mutex
}

type localFile struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

func newLocalStore(path, passphrase string) (*localStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &localStore{path: path, passphrase: passphrase}, nil
}

func (s *localStore) get(userID string) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	creds, ok := entries[userID]
	if !ok {
		return nil, ErrNotConfigured
	}
	return &creds, nil
}

func (s *localStore) put(userID string, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return err
	}
	if entries == nil {
		entries = make(map[string]Credentials)
	}
	entries[userID] = creds
	return s.save(entries)
}

func (s *localStore) delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return nil
		}
		return err
	}
	delete(entries, userID)
	return s.save(entries)
}

// load decrypts the store file. Any corruption or passphrase mismatch
// fails closed as not-configured rather than returning partial data.
func (s *localStore) load() (map[string]Credentials, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}

	var file localFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, ErrNotConfigured
	}

	key, err := scrypt.Key([]byte(s.passphrase), file.Salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, file.Nonce, file.Data, nil)
	if err != nil {
		return nil, ErrNotConfigured
	}

	var entries map[string]Credentials
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, ErrNotConfigured
	}
	return entries, nil
}

func (s *localStore) save(entries map[string]Credentials) error {
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}

	key, err := scrypt.Key([]byte(s.passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return fmt.Errorf("key derivation failed: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}

	file := localFile{
		Salt:  salt,
		Nonce: nonce,
		Data:  gcm.Seal(nil, nonce, plaintext, nil),
	}

	raw, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}
