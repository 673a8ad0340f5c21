package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

func selfSignedCert(t *testing.T, key *rsa.PrivateKey) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "kappshell test signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert
}

func TestLoadSigningCertificatePKCS12(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cert := selfSignedCert(t, key)

	pfxData, err := pkcs12.Encode(rand.Reader, key, cert, nil, "testpass")
	if err != nil {
		t.Fatalf("pkcs12.Encode: %v", err)
	}

	path := filepath.Join(t.TempDir(), "release.p12")
	if err := os.WriteFile(path, pfxData, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := LoadSigningCertificate(path, "testpass", "testpass", "")
	if err != nil {
		t.Fatalf("LoadSigningCertificate: %v", err)
	}
	if got.SerialNumber.Cmp(cert.SerialNumber) != 0 {
		t.Errorf("got serial %v, want %v", got.SerialNumber, cert.SerialNumber)
	}

	wantDigest := Digest(cert)
	gotDigest := Digest(got)
	if gotDigest != wantDigest {
		t.Errorf("Digest mismatch: got %x, want %x", gotDigest, wantDigest)
	}
}

func TestLoadSigningCertificateUnrecognisedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	if err := os.WriteFile(path, []byte("not a keystore"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := LoadSigningCertificate(path, "", "", "")
	if err == nil {
		t.Fatal("LoadSigningCertificate(garbage) = nil error, want format error")
	}
}
