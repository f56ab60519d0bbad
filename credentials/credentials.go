// Package credentials stores the optional Wikimedia API token used by the
// lookup client. The token is kept in ~/.qidlink/credentials.yaml, encrypted
// with AES-GCM.
//
// The encryption key comes from, in order:
//   - QIDLINK_CREDENTIALS_KEY, a 64-character hex string (CI and tests)
//   - QIDLINK_CREDENTIALS_PASSPHRASE, stretched with Argon2id using a salt
//     stored next to the token
//   - the system keyring (macOS Keychain, Windows Credential Manager,
//     Linux Secret Service)
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential storage constants.
const (
	DefaultCredentialsDir  = ".qidlink"
	DefaultCredentialsFile = "credentials.yaml"

	// TokenEnvVar overrides any stored token.
	TokenEnvVar = "QIDLINK_API_TOKEN"
)

// Common errors.
var (
	// ErrNoCredentials is returned when no token is stored.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrExpiredToken is returned when the stored token has expired.
	ErrExpiredToken = errors.New("stored token has expired")
	// ErrEncryptionFailed is returned when encryption/decryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
)

// Credentials is the stored token and its metadata.
type Credentials struct {
	// Token is the bearer token (encrypted at rest).
	Token string `yaml:"token"`
	// Username is the account the token belongs to, for display.
	Username string `yaml:"username,omitempty"`
	// ExpiresAt is the token expiry; zero means it does not expire.
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
	// Salt is the Argon2id salt, present when a passphrase key was used.
	Salt string `yaml:"salt,omitempty"`
	// LastUpdated is when the token was last saved.
	LastUpdated time.Time `yaml:"last_updated"`
}

// Store manages the credentials file.
type Store struct {
	dir         string
	key         []byte
	keyProvider KeyProvider
	salt        []byte
}

// NewStore creates a store using the default key provider.
func NewStore() (*Store, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}

	provider, salt, err := defaultKeyProvider(dir)
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}
	s, err := newStore(dir, provider)
	if err != nil {
		return nil, err
	}
	s.salt = salt
	return s, nil
}

// NewStoreWithKeyProvider creates a store with an explicit key provider.
func NewStoreWithKeyProvider(provider KeyProvider) (*Store, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}
	return newStore(dir, provider)
}

func newStore(dir string, provider KeyProvider) (*Store, error) {
	key, err := provider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}
	return &Store{dir: dir, key: key, keyProvider: provider}, nil
}

// KeySource describes where the encryption key is kept.
func (s *Store) KeySource() string {
	return s.keyProvider.Description()
}

// CredentialsDir returns the credentials directory path.
// Uses $QIDLINK_CONFIG_DIR if set, otherwise ~/.qidlink
func CredentialsDir() (string, error) {
	if dir := os.Getenv("QIDLINK_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultCredentialsDir), nil
}

// CredentialsPath returns the full path to the credentials file.
func CredentialsPath() (string, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultCredentialsFile), nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, DefaultCredentialsFile)
}

// Save encrypts and writes creds.
func (s *Store) Save(creds *Credentials) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	stored := *creds
	stored.LastUpdated = time.Now()
	if len(s.salt) > 0 {
		stored.Salt = hex.EncodeToString(s.salt)
	}

	encrypted, err := s.encrypt(stored.Token)
	if err != nil {
		return fmt.Errorf("encrypting token: %w", err)
	}
	stored.Token = encrypted

	data, err := yaml.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}

// Load reads and decrypts the stored credentials.
func (s *Store) Load() (*Credentials, error) {
	creds, err := readFile(s.path())
	if err != nil {
		return nil, err
	}

	if creds.Token != "" {
		token, err := s.decrypt(creds.Token)
		if err != nil {
			return nil, fmt.Errorf("decrypting token: %w", err)
		}
		creds.Token = token
	}
	return creds, nil
}

func readFile(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return &creds, nil
}

// Delete removes the credentials file. A missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credentials file: %w", err)
	}
	return nil
}

// Exists reports whether a credentials file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path())
	return err == nil
}

// Token returns the token to send with lookups: QIDLINK_API_TOKEN when set,
// otherwise the stored token. ErrNoCredentials means anonymous access.
func (s *Store) Token() (string, error) {
	if token := os.Getenv(TokenEnvVar); token != "" {
		return token, nil
	}

	creds, err := s.Load()
	if err != nil {
		return "", err
	}
	if !creds.ExpiresAt.IsZero() && time.Now().After(creds.ExpiresAt) {
		return "", ErrExpiredToken
	}
	return creds.Token, nil
}

// encrypt encrypts a string using AES-GCM.
func (s *Store) encrypt(plaintext string) (string, error) {
	gcm, err := newGCM(s.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts an AES-GCM encrypted string.
func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}

	gcm, err := newGCM(s.key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decryption failed: %v", ErrEncryptionFailed, err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}
	return gcm, nil
}

// MaskToken returns a masked token with first/last few characters visible.
func MaskToken(token string) string {
	if len(token) <= 20 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + "..." + token[len(token)-8:]
}

// FormatExpiry formats the expiry time for display.
func FormatExpiry(expiresAt time.Time) string {
	if expiresAt.IsZero() {
		return "never"
	}

	remaining := time.Until(expiresAt)
	if remaining < 0 {
		return "expired"
	}

	if remaining < time.Hour {
		return fmt.Sprintf("%d minutes", int(remaining.Minutes()))
	}
	if remaining < 24*time.Hour {
		return fmt.Sprintf("%d hours", int(remaining.Hours()))
	}
	return fmt.Sprintf("%d days", int(remaining.Hours()/24))
}
