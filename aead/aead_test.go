package aead

import (
	"bytes"
	"testing"
)

func testKey() [KeySize]byte {
	var k [KeySize]byte
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(ciphertext) == 0 {
		t.Fatal("Encrypt returned empty ciphertext")
	}

	got, err := Decrypt(key, ciphertext, nonce)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	key := testKey()
	ciphertext, nonce, err := Encrypt(key, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0xFF

	_, err = Decrypt(key, tampered, nonce)
	if err == nil {
		t.Fatal("Decrypt(tampered) = nil error, want CryptoError")
	}
	if _, ok := err.(*CryptoError); !ok {
		t.Errorf("Decrypt(tampered) error type = %T, want *CryptoError", err)
	}
}

func TestDecryptEmptyCiphertextFails(t *testing.T) {
	key := testKey()
	var nonce [NonceSize]byte
	_, err := Decrypt(key, nil, nonce)
	if err == nil {
		t.Fatal("Decrypt(empty) = nil error, want CryptoError")
	}
}

func TestNoncesAreDistinct(t *testing.T) {
	key := testKey()
	seen := make(map[[NonceSize]byte]bool)
	const samples = 1024
	for i := 0; i < samples; i++ {
		_, nonce, err := Encrypt(key, []byte("x"))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if seen[nonce] {
			t.Fatalf("nonce collision after %d samples", i)
		}
		seen[nonce] = true
	}
}
