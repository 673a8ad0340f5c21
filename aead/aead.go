// Package aead implements the single authenticated-encryption primitive
// shared by the packer and the loader: AES-256-GCM with a fresh random
// 12-byte nonce per entry and empty associated data.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// NonceSize is the AES-GCM nonce length used for every payload entry.
const NonceSize = 12

// KeySize is the AES-256 key length.
const KeySize = 32

// CryptoError reports an AEAD failure: a bad key, a corrupt ciphertext, or a
// tag mismatch. The loader treats every CryptoError as fatal for the entry
// being decrypted.
type CryptoError struct {
	Reason string
	Err    error
}

func (e *CryptoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("aead: %s: %v", e.Reason, e.Err)
	}
	return "aead: " + e.Reason
}

func (e *CryptoError) Unwrap() error { return e.Err }

func newGCM(key [KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, &CryptoError{Reason: "aes.NewCipher", Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &CryptoError{Reason: "cipher.NewGCM", Err: err}
	}
	return gcm, nil
}

// Encrypt seals plaintext under key with a freshly generated random nonce
// drawn from crypto/rand, satisfying the invariant that (name, nonce) pairs
// are never reused within one blob (the caller supplies a distinct name per
// call; the nonce is unconditionally fresh here).
func Encrypt(key [KeySize]byte, plaintext []byte) (ciphertext []byte, nonce [NonceSize]byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nonce, err
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, nonce, &CryptoError{Reason: "rand.Read nonce", Err: err}
	}
	ciphertext = gcm.Seal(nil, nonce[:], plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext under key and nonce. An empty ciphertext or a tag
// mismatch both surface as *CryptoError, never a panic.
func Decrypt(key [KeySize]byte, ciphertext []byte, nonce [NonceSize]byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, &CryptoError{Reason: "empty ciphertext"}
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, &CryptoError{Reason: "tag verification failed", Err: err}
	}
	return plaintext, nil
}
