// Package keystore loads an Android APK signing keystore (JKS or PKCS12) and
// extracts the signing certificate so the packer can compute the expected
// certificate SHA-256 digest injected into the loader. Unlike a
// code-signing tool this package never needs the private key — only the
// public certificate that identifies the signer.
//
// Format detection and the JKS/PKCS12 loading strategy are adapted from a
// sibling signing tool's keystore loader, which extracts private keys for
// the same two container formats; here the analogous entry lookup returns
// the certificate chain instead of the key.
package keystore

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"os"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"
	"software.sslmate.com/src/go-pkcs12"
)

// DefaultStorePassword is the keytool default store password ("changeit"),
// which many release keystores never changed. It does not cover the Android
// debug keystore, whose password is "android". Callers should prefer an
// explicit password where one is known.
const DefaultStorePassword = "changeit"

// LoadSigningCertificate reads the keystore at path and returns the leaf
// signing certificate. storePassword unlocks the keystore container;
// entryPassword unlocks the specific key/cert entry (JKS only — PKCS12
// ties both to one password). alias selects a specific JKS entry; an empty
// alias returns the first certificate-bearing entry found.
func LoadSigningCertificate(path, storePassword, entryPassword, alias string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}

	// JKS magic: 0xFEEDFEED.
	if len(data) >= 4 && data[0] == 0xFE && data[1] == 0xED && data[2] == 0xFE && data[3] == 0xED {
		return loadJKSCertificate(data, storePassword, entryPassword, alias)
	}
	// PKCS12 / PFX: DER SEQUENCE tag.
	if len(data) > 0 && data[0] == 0x30 {
		return loadPKCS12Certificate(data, storePassword)
	}
	return nil, fmt.Errorf("keystore: %s: unrecognised keystore format (expected JKS 0xFEEDFEED or PKCS12 DER 0x30)", path)
}

func loadJKSCertificate(data []byte, storePassword, entryPassword, alias string) (*x509.Certificate, error) {
	ks := jks.New()
	if err := ks.Load(bytes.NewReader(data), []byte(storePassword)); err != nil {
		if err2 := ks.Load(bytes.NewReader(data), []byte(entryPassword)); err2 != nil {
			return nil, fmt.Errorf("keystore: JKS load: %w", err)
		}
	}

	tryAlias := func(a string) (*x509.Certificate, error) {
		if ks.IsPrivateKeyEntry(a) {
			entry, err := ks.GetPrivateKeyEntry(a, []byte(entryPassword))
			if err != nil {
				return nil, fmt.Errorf("keystore: JKS private key entry %q: %w", a, err)
			}
			if len(entry.CertificateChain) == 0 {
				return nil, fmt.Errorf("keystore: JKS private key entry %q has no certificate chain", a)
			}
			return x509.ParseCertificate(entry.CertificateChain[0].Content)
		}
		if ks.IsTrustedCertificateEntry(a) {
			entry, err := ks.GetTrustedCertificateEntry(a)
			if err != nil {
				return nil, fmt.Errorf("keystore: JKS trusted cert entry %q: %w", a, err)
			}
			return x509.ParseCertificate(entry.Certificate.Content)
		}
		return nil, fmt.Errorf("keystore: JKS alias %q is neither a private key nor a trusted certificate entry", a)
	}

	if alias != "" {
		return tryAlias(alias)
	}
	for _, a := range ks.Aliases() {
		if cert, err := tryAlias(a); err == nil {
			return cert, nil
		}
	}
	return nil, fmt.Errorf("keystore: JKS: no certificate-bearing entry found")
}

func loadPKCS12Certificate(data []byte, password string) (*x509.Certificate, error) {
	candidates := []string{password, DefaultStorePassword, ""}
	var lastErr error
	for _, pw := range dedupe(candidates) {
		_, cert, err := pkcs12.Decode(data, pw)
		if err != nil {
			lastErr = err
			continue
		}
		if cert == nil {
			lastErr = fmt.Errorf("keystore: PKCS12 decoded with no leaf certificate")
			continue
		}
		return cert, nil
	}
	return nil, fmt.Errorf("keystore: PKCS12 decode failed: %w", lastErr)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Digest returns the SHA-256 digest of cert's DER bytes — the same
// computation the loader performs at runtime on the live Context's signing
// certificate, so that values computed here and at install time are
// directly comparable.
func Digest(cert *x509.Certificate) [32]byte {
	return sha256.Sum256(cert.Raw)
}
