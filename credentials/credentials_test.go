package credentials

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// testEncryptionKey is a fixed 32-byte key for testing (hex-encoded to 64 chars)
const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// setupTestEnv points the store at dir and pins the encryption key.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("QIDLINK_CONFIG_DIR", dir)
	t.Setenv(KeyEnvVar, testEncryptionKey)
	t.Setenv(PassphraseEnvVar, "")
	t.Setenv(TokenEnvVar, "")
	return dir
}

func TestCredentialsPath(t *testing.T) {
	dir := setupTestEnv(t)

	path, err := CredentialsPath()
	if err != nil {
		t.Fatalf("CredentialsPath() error = %v", err)
	}
	if path != filepath.Join(dir, DefaultCredentialsFile) {
		t.Errorf("CredentialsPath() = %v", path)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	dir := setupTestEnv(t)

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store.Exists() {
		t.Error("Exists() should be false before Save")
	}

	expires := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	if err := store.Save(&Credentials{Token: "secret-token-value", Username: "cataloguer", ExpiresAt: expires}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// The file on disk must not carry the plaintext token.
	raw, err := os.ReadFile(filepath.Join(dir, DefaultCredentialsFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "secret-token-value") {
		t.Error("token stored in plaintext")
	}
	info, _ := os.Stat(filepath.Join(dir, DefaultCredentialsFile))
	if info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Token != "secret-token-value" {
		t.Errorf("Token = %q", loaded.Token)
	}
	if loaded.Username != "cataloguer" {
		t.Errorf("Username = %q", loaded.Username)
	}
	if !loaded.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.ExpiresAt, expires)
	}
	if loaded.LastUpdated.IsZero() {
		t.Error("LastUpdated should be set")
	}
}

func TestStore_LoadNoCredentials(t *testing.T) {
	setupTestEnv(t)

	store, err := NewStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Load() error = %v, want ErrNoCredentials", err)
	}
	if _, err := store.Token(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Token() error = %v, want ErrNoCredentials", err)
	}
}

func TestStore_Delete(t *testing.T) {
	setupTestEnv(t)

	store, err := NewStore()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(&Credentials{Token: "t"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Exists() {
		t.Error("Exists() should be false after Delete")
	}
	if err := store.Delete(); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestStore_Token(t *testing.T) {
	t.Run("env var wins", func(t *testing.T) {
		setupTestEnv(t)
		store, _ := NewStore()
		_ = store.Save(&Credentials{Token: "stored"})
		t.Setenv(TokenEnvVar, "from-env")

		token, err := store.Token()
		if err != nil || token != "from-env" {
			t.Errorf("Token() = %q, %v", token, err)
		}
	})

	t.Run("stored", func(t *testing.T) {
		setupTestEnv(t)
		store, _ := NewStore()
		_ = store.Save(&Credentials{Token: "stored"})

		token, err := store.Token()
		if err != nil || token != "stored" {
			t.Errorf("Token() = %q, %v", token, err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		setupTestEnv(t)
		store, _ := NewStore()
		_ = store.Save(&Credentials{Token: "old", ExpiresAt: time.Now().Add(-time.Hour)})

		if _, err := store.Token(); !errors.Is(err, ErrExpiredToken) {
			t.Errorf("Token() error = %v, want ErrExpiredToken", err)
		}
	})
}

func TestStore_WrongKey(t *testing.T) {
	setupTestEnv(t)
	store, _ := NewStore()
	if err := store.Save(&Credentials{Token: "secret"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv(KeyEnvVar, strings.Repeat("ab", 32))
	other, err := NewStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Load(); !errors.Is(err, ErrEncryptionFailed) {
		t.Errorf("Load() error = %v, want ErrEncryptionFailed", err)
	}
}

func TestStore_PassphraseKeepsSalt(t *testing.T) {
	dir := setupTestEnv(t)
	t.Setenv(KeyEnvVar, "")
	t.Setenv(PassphraseEnvVar, "correct horse")

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store.KeySource() != "Passphrase-derived key (Argon2id)" {
		t.Errorf("KeySource() = %q", store.KeySource())
	}
	if err := store.Save(&Credentials{Token: "tok"}); err != nil {
		t.Fatal(err)
	}

	raw, _ := os.ReadFile(filepath.Join(dir, DefaultCredentialsFile))
	var onDisk Credentials
	if err := yaml.Unmarshal(raw, &onDisk); err != nil {
		t.Fatal(err)
	}
	if len(onDisk.Salt) != 2*saltLength {
		t.Errorf("Salt = %q, want %d hex chars", onDisk.Salt, 2*saltLength)
	}

	// A second store must derive the same key from the stored salt.
	again, err := NewStore()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := again.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Token != "tok" {
		t.Errorf("Token = %q", loaded.Token)
	}
}

func TestEnvKeyProvider_GetKey(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", testEncryptionKey, false},
		{"unset", "", true},
		{"not hex", strings.Repeat("zz", 32), true},
		{"too short", "abcd", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("QIDLINK_TEST_KEY", tc.value)
			key, err := NewEnvKeyProvider("QIDLINK_TEST_KEY").GetKey()
			if (err != nil) != tc.wantErr {
				t.Fatalf("GetKey() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && hex.EncodeToString(key) != tc.value {
				t.Errorf("GetKey() = %x", key)
			}
		})
	}
}

func TestPassphraseKeyProvider_GetKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1, err := NewPassphraseKeyProvider("pw", salt).GetKey()
	if err != nil {
		t.Fatal(err)
	}
	if len(k1) != keyLength {
		t.Errorf("key length = %d", len(k1))
	}
	k2, _ := NewPassphraseKeyProvider("pw", salt).GetKey()
	if hex.EncodeToString(k1) != hex.EncodeToString(k2) {
		t.Error("same passphrase and salt should derive the same key")
	}
	k3, _ := NewPassphraseKeyProvider("other", salt).GetKey()
	if hex.EncodeToString(k1) == hex.EncodeToString(k3) {
		t.Error("different passphrases should derive different keys")
	}

	if _, err := NewPassphraseKeyProvider("", salt).GetKey(); err == nil {
		t.Error("empty passphrase should fail")
	}
	if _, err := NewPassphraseKeyProvider("pw", nil).GetKey(); err == nil {
		t.Error("missing salt should fail")
	}
}

func TestMaskToken(t *testing.T) {
	if got := MaskToken("short"); got != "*****" {
		t.Errorf("MaskToken(short) = %q", got)
	}
	if got := MaskToken("abcdefgh12345678901234567890wxyz"); got != "abcdefgh...7890wxyz" {
		t.Errorf("MaskToken(long) = %q", got)
	}
}

func TestFormatExpiry(t *testing.T) {
	if got := FormatExpiry(time.Time{}); got != "never" {
		t.Errorf("FormatExpiry(zero) = %q", got)
	}
	if got := FormatExpiry(time.Now().Add(-time.Minute)); got != "expired" {
		t.Errorf("FormatExpiry(past) = %q", got)
	}
	if got := FormatExpiry(time.Now().Add(72*time.Hour + time.Minute)); got != "3 days" {
		t.Errorf("FormatExpiry(3d) = %q", got)
	}
}
