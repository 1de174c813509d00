// Package vault seals byte slices and files with AES-256-GCM under a key
// kept in a local key file. Sealed data is the 12-byte nonce followed by
// the ciphertext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	// ErrKeyLength is returned for key material shorter than KeySize.
	ErrKeyLength = errors.New("vault: key must be 32 bytes")
	// ErrCiphertext is returned when sealed data is truncated or fails
	// authentication.
	ErrCiphertext = errors.New("vault: ciphertext invalid")
)

// Vault seals and opens data with one key.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault. Only the first KeySize bytes of key are used.
func New(key []byte) (*Vault, error) {
	if len(key) < KeySize {
		return nil, ErrKeyLength
	}
	block, err := aes.NewCipher(key[:KeySize])
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// LoadOrCreateKey reads the key file at path, generating a fresh random key
// (mode 0600) when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) < KeySize {
			return nil, fmt.Errorf("%s: %w", path, ErrKeyLength)
		}
		return data[:KeySize], nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	return key, nil
}

// Open loads (or creates) the key at path and returns a Vault for it.
func Open(path string) (*Vault, error) {
	key, err := LoadOrCreateKey(path)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// Seal encrypts plain with a random nonce.
func (v *Vault) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plain)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plain, nil), nil
}

// Unseal reverses Seal.
func (v *Vault) Unseal(sealed []byte) ([]byte, error) {
	n := v.aead.NonceSize()
	if len(sealed) < n+v.aead.Overhead() {
		return nil, ErrCiphertext
	}
	plain, err := v.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, ErrCiphertext
	}
	return plain, nil
}

// SealFile writes the sealed contents of src to dst.
func (v *Vault) SealFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	sealed, err := v.Seal(data)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, sealed)
}

// UnsealFile writes the opened contents of src to dst.
func (v *Vault) UnsealFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	plain, err := v.Unseal(data)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	return writeFileAtomic(dst, plain)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
