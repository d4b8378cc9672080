package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
)

// envelopePrefix marks a variable value sealed by this middleware.
const envelopePrefix = "enc:v1:"

// ErrNotEncrypted is returned when a stored value lacks the encryption envelope.
var ErrNotEncrypted = errors.New("variable is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals variable values
// with AES-GCM. Sessions only carry a position and are stored as is.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) seal(value string) (string, error) {
	ciphertext, err := encrypt([]byte(value), m.config.ActiveKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt variable: %w", err)
	}
	return envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (m *encryptionMiddleware) open(value string) (string, error) {
	// Fail secure: a plain value means the store was written without encryption.
	encoded, ok := strings.CutPrefix(value, envelopePrefix)
	if !ok {
		return "", ErrNotEncrypted
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt variable: %w", err)
	}
	return string(plainText), nil
}

func (m *encryptionMiddleware) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	return m.next.LoadSession(ctx, userID)
}

func (m *encryptionMiddleware) SaveSession(ctx context.Context, session *domain.Session) error {
	return m.next.SaveSession(ctx, session)
}

func (m *encryptionMiddleware) LoadVariable(ctx context.Context, userID, name string) (string, error) {
	sealed, err := m.next.LoadVariable(ctx, userID, name)
	if err != nil {
		return "", err
	}
	return m.open(sealed)
}

func (m *encryptionMiddleware) SaveVariable(ctx context.Context, userID, name, value string) error {
	sealed, err := m.seal(value)
	if err != nil {
		return err
	}
	return m.next.SaveVariable(ctx, userID, name, sealed)
}

func (m *encryptionMiddleware) LoadVariables(ctx context.Context, userID string) (map[string]string, error) {
	sealed, err := m.next.LoadVariables(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(sealed))
	for name, v := range sealed {
		plain, err := m.open(v)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		out[name] = plain
	}
	return out, nil
}

func (m *encryptionMiddleware) Commit(ctx context.Context, session *domain.Session, vars map[string]string) error {
	sealed := make(map[string]string, len(vars))
	for name, v := range vars {
		s, err := m.seal(v)
		if err != nil {
			return err
		}
		sealed[name] = s
	}
	return commitTo(ctx, m.next, session, sealed)
}

func (m *encryptionMiddleware) DeleteSession(ctx context.Context, userID string) error {
	return m.next.DeleteSession(ctx, userID)
}

func (m *encryptionMiddleware) ListSessions(ctx context.Context) ([]string, error) {
	return m.next.ListSessions(ctx)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
