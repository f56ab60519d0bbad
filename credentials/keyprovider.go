package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/argon2"
)

const (
	// keyringService is the service name used in the system keyring.
	keyringService = "qidlink"
	// keyringUser is the account name used in the system keyring.
	keyringUser = "credentials-key"
	// keyLength is the required encryption key length (256 bits for AES-256).
	keyLength  = 32
	saltLength = 16
)

// Environment variables consulted by the default key provider.
const (
	KeyEnvVar        = "QIDLINK_CREDENTIALS_KEY"
	PassphraseEnvVar = "QIDLINK_CREDENTIALS_PASSPHRASE"
)

// Argon2id parameters for passphrase-based keys.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
)

// ErrKeyringUnavailable indicates the system keyring is not available.
var ErrKeyringUnavailable = errors.New("system keyring unavailable")

// KeyProvider supplies the 32-byte encryption key.
type KeyProvider interface {
	// GetKey returns the key, creating one if the provider stores keys.
	GetKey() ([]byte, error)
	// Description names the key storage for display.
	Description() string
}

// KeyringKeyProvider keeps a random key in the system keyring.
type KeyringKeyProvider struct {
	mu sync.Mutex
}

// NewKeyringKeyProvider creates a new KeyringKeyProvider.
func NewKeyringKeyProvider() *KeyringKeyProvider {
	return &KeyringKeyProvider{}
}

// GetKey retrieves the key from the keyring, generating and storing a new
// one when none exists or the stored value is malformed.
func (p *KeyringKeyProvider) GetKey() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	keyHex, err := keyring.Get(keyringService, keyringUser)
	if err == nil {
		if key, decErr := hex.DecodeString(keyHex); decErr == nil && len(key) == keyLength {
			return key, nil
		}
	} else if !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating random key: %w", err)
	}
	if err := keyring.Set(keyringService, keyringUser, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("%w: storing key: %v", ErrKeyringUnavailable, err)
	}
	return key, nil
}

// Description returns a description of this key provider.
func (p *KeyringKeyProvider) Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// PassphraseKeyProvider derives the key from a passphrase with Argon2id.
type PassphraseKeyProvider struct {
	passphrase string
	salt       []byte
}

// NewPassphraseKeyProvider creates a provider. The salt must be stored with
// the credentials so the same key can be derived again.
func NewPassphraseKeyProvider(passphrase string, salt []byte) *PassphraseKeyProvider {
	return &PassphraseKeyProvider{passphrase: passphrase, salt: salt}
}

// GetKey derives the key.
func (p *PassphraseKeyProvider) GetKey() ([]byte, error) {
	if p.passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if len(p.salt) == 0 {
		return nil, errors.New("salt is required")
	}
	return argon2.IDKey([]byte(p.passphrase), p.salt, argon2Time, argon2Memory, argon2Threads, keyLength), nil
}

// Description returns a description of this key provider.
func (p *PassphraseKeyProvider) Description() string {
	return "Passphrase-derived key (Argon2id)"
}

// GenerateSalt returns a random salt for passphrase key derivation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// EnvKeyProvider reads a hex key from an environment variable.
type EnvKeyProvider struct {
	envVar string
}

// NewEnvKeyProvider creates a new EnvKeyProvider that reads the key from the given env var.
func NewEnvKeyProvider(envVar string) *EnvKeyProvider {
	return &EnvKeyProvider{envVar: envVar}
}

// GetKey returns the key from the environment variable.
func (p *EnvKeyProvider) GetKey() ([]byte, error) {
	keyHex := os.Getenv(p.envVar)
	if keyHex == "" {
		return nil, fmt.Errorf("environment variable %s not set", p.envVar)
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid key in %s: %w", p.envVar, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("key in %s must be %d bytes, got %d", p.envVar, keyLength, len(key))
	}
	return key, nil
}

// Description returns a description of this key provider.
func (p *EnvKeyProvider) Description() string {
	return fmt.Sprintf("Environment variable (%s)", p.envVar)
}

// defaultKeyProvider picks the key source for dir. For a passphrase it also
// returns the salt: the one already in the credentials file, or a fresh one.
func defaultKeyProvider(dir string) (KeyProvider, []byte, error) {
	if os.Getenv(KeyEnvVar) != "" {
		return NewEnvKeyProvider(KeyEnvVar), nil, nil
	}

	if passphrase := os.Getenv(PassphraseEnvVar); passphrase != "" {
		salt, err := storedSalt(dir)
		if err != nil {
			return nil, nil, err
		}
		if salt == nil {
			if salt, err = GenerateSalt(); err != nil {
				return nil, nil, err
			}
		}
		return NewPassphraseKeyProvider(passphrase, salt), salt, nil
	}

	provider := NewKeyringKeyProvider()
	if _, err := provider.GetKey(); err != nil {
		if errors.Is(err, ErrKeyringUnavailable) {
			return nil, nil, fmt.Errorf("set %s or %s: %w", KeyEnvVar, PassphraseEnvVar, err)
		}
		return nil, nil, err
	}
	return provider, nil, nil
}

func storedSalt(dir string) ([]byte, error) {
	creds, err := readFile(filepath.Join(dir, DefaultCredentialsFile))
	if errors.Is(err, ErrNoCredentials) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if creds.Salt == "" {
		return nil, nil
	}
	salt, err := hex.DecodeString(creds.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt in credentials file: %w", err)
	}
	return salt, nil
}

// IsKeyringAvailable checks if the system keyring is accessible.
func IsKeyringAvailable() bool {
	_, err := NewKeyringKeyProvider().GetKey()
	return err == nil
}
