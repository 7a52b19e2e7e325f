package appcache

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
	nonceSize = 12
)

// securityConfig holds the at-rest encryption configuration for a
// [Database]. Ported from the teacher's passphrase -> scrypt -> AES-GCM
// pipeline; generalized from "encrypt a cached HTTP response" to "encrypt
// a KVStore value" since manifest text and binding records have no
// response-shaped analogue.
type securityConfig struct {
	gcm cipher.AEAD
}

func initEncryption(passphrase string) (cipher.AEAD, error) {
	salt := sha256.Sum256([]byte("appcache-at-rest-salt-v1"))
	key, err := scrypt.Key([]byte(passphrase), salt[:], scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("appcache: derive encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("appcache: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("appcache: create GCM: %w", err)
	}
	return gcm, nil
}

func encryptValue(gcm cipher.AEAD, data []byte) ([]byte, error) {
	if gcm == nil {
		return data, nil
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("appcache: generate nonce: %w", err)
	}
	// #nosec G407 -- nonce is randomly generated above using crypto/rand, not hardcoded
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func decryptValue(gcm cipher.AEAD, data []byte) ([]byte, error) {
	if gcm == nil {
		return data, nil
	}
	if len(data) < nonceSize {
		return nil, fmt.Errorf("appcache: ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("appcache: decrypt value: %w", err)
	}
	return plaintext, nil
}

// encryptedStore wraps a KVStore, transparently encrypting values with
// AES-256-GCM before they reach the backend and decrypting them on read.
// Keys are left in the clear: backends need them for prefix scans and
// range deletes (see backend/leveldb, backend/rediskv).
type encryptedStore struct {
	kv  KVStore
	gcm cipher.AEAD
}

func newEncryptedStore(kv KVStore, gcm cipher.AEAD) KVStore {
	if gcm == nil {
		return kv
	}
	return &encryptedStore{kv: kv, gcm: gcm}
}

func (s *encryptedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	plain, err := decryptValue(s.gcm, raw)
	if err != nil {
		return nil, false, err
	}
	return plain, true, nil
}

func (s *encryptedStore) Put(ctx context.Context, key string, value []byte) error {
	cipherText, err := encryptValue(s.gcm, value)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, key, cipherText)
}

func (s *encryptedStore) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, key)
}

func (s *encryptedStore) Keys(ctx context.Context) ([]string, error) {
	return s.kv.Keys(ctx)
}
