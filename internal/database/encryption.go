package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"orderbridge/internal/constants"

	"golang.org/x/crypto/pbkdf2"
)

// sealedPrefix marks values written by this encryptor so a plaintext column
// left over from an unencrypted deployment is not mistaken for ciphertext.
const sealedPrefix = "v1:"

// phoneAAD binds sealed values to the phone columns
var phoneAAD = []byte("orderbridge/phone")

var errMalformedCiphertext = errors.New("malformed ciphertext")

// encryptor seals phone numbers at rest. A nil AEAD passes values through.
type encryptor struct {
	aead cipher.AEAD
}

func newEncryptor(enabled bool, secret string) (*encryptor, error) {
	if !enabled {
		return &encryptor{}, nil
	}
	if secret == "" {
		return nil, fmt.Errorf("ORDERBRIDGE_ENCRYPTION_SECRET is required when phone encryption is enabled")
	}
	if len(secret) < constants.MinEncryptionSecret {
		return nil, fmt.Errorf("encryption secret must be at least %d characters long", constants.MinEncryptionSecret)
	}

	key := pbkdf2.Key([]byte(secret), []byte(constants.EncryptionSalt), constants.EncryptionIterations, constants.EncryptionKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes key setup: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, constants.EncryptionNonceSize)
	if err != nil {
		return nil, fmt.Errorf("gcm setup: %w", err)
	}
	return &encryptor{aead: aead}, nil
}

func (e *encryptor) Enabled() bool {
	return e.aead != nil
}

// Encrypt returns "v1:" followed by base64(nonce || sealed phone)
func (e *encryptor) Encrypt(phone string) (string, error) {
	if !e.Enabled() || phone == "" {
		return phone, nil
	}

	buf := make([]byte, constants.EncryptionNonceSize, constants.EncryptionNonceSize+len(phone)+e.aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	buf = e.aead.Seal(buf, buf[:constants.EncryptionNonceSize], []byte(phone), phoneAAD)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(buf), nil
}

func (e *encryptor) Decrypt(stored string) (string, error) {
	if !e.Enabled() || stored == "" {
		return stored, nil
	}

	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return "", errMalformedCiphertext
	}
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errMalformedCiphertext, err)
	}
	if len(raw) < constants.EncryptionNonceSize+e.aead.Overhead() {
		return "", errMalformedCiphertext
	}

	phone, err := e.aead.Open(nil, raw[:constants.EncryptionNonceSize], raw[constants.EncryptionNonceSize:], phoneAAD)
	if err != nil {
		return "", fmt.Errorf("open sealed phone: %w", err)
	}
	return string(phone), nil
}
