// Package vault provides the credential primitives for TabGate: authenticated
// encryption of stored remote secrets, adaptive one-way hashing of locally
// issued API keys, and secure key generation.
//
// A Vault is immutable after construction and safe for concurrent use. It is
// created once at startup from the process master secret and injected into
// every component that needs it, never held as global state.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinMasterSecretLen is the minimum master secret length in bytes.
// A shorter secret is a fatal startup configuration error.
const MinMasterSecretLen = 32

const (
	keyBytes   = 32 // AES-256
	nonceBytes = 12 // standard GCM nonce size
	tokenBytes = 32 // 256 bits of entropy per issued API key
)

// ErrDecrypt is returned when a ciphertext cannot be authenticated with the
// current cipher key. It signals master-key rotation or data corruption and
// must never be swallowed or reported as a caller fault.
var ErrDecrypt = errors.New("vault: cannot decrypt stored secret (key mismatch or corrupted data)")

// ErrMasterSecretTooShort is returned by New when the master secret carries
// less than MinMasterSecretLen bytes of material.
var ErrMasterSecretTooShort = fmt.Errorf("vault: master secret must be at least %d bytes", MinMasterSecretLen)

// Vault holds the derived symmetric cipher used for remote-secret storage.
type Vault struct {
	aead cipher.AEAD
}

// New derives a fixed-length AES-256 key from the master secret and returns
// a ready-to-use Vault. The derivation is deterministic so that every process
// sharing the master secret can decrypt the same stored ciphertexts.
func New(masterSecret string) (*Vault, error) {
	if len(masterSecret) < MinMasterSecretLen {
		return nil, ErrMasterSecretTooShort
	}

	key := sha256.Sum256([]byte(masterSecret))

	block, err := aes.NewCipher(key[:keyBytes])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals the remote secret with AES-GCM. The random nonce is prepended
// to the ciphertext so the result is self-describing: decryption needs only
// the vault key.
func (v *Vault) Encrypt(secret string) ([]byte, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, []byte(secret), nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt. A ciphertext that is too
// short or fails GCM authentication yields ErrDecrypt.
func (v *Vault) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) < nonceBytes {
		return "", ErrDecrypt
	}
	nonce, sealed := ciphertext[:nonceBytes], ciphertext[nonceBytes:]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// HashKey hashes a plaintext API key with bcrypt at the default cost.
// The salt is embedded in the hash; the plaintext is not recoverable.
func HashKey(plainKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plainKey), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing key: %w", err)
	}
	return string(hash), nil
}

// VerifyKey reports whether plainKey matches a hash produced by HashKey.
func VerifyKey(plainKey, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plainKey)) == nil
}

// GenerateKey returns a URL-safe random API key with 256 bits of entropy
// (43 base64 characters, no padding).
func GenerateKey() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
