package buildconfig

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kapp-shell/kappshell/aead"
)

func TestWriteRead_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buildconfig.json")

	want := &Loader{
		AESKeyHex:                strings.Repeat("ab", aead.KeySize),
		XORKeyHex:                strings.Repeat("cd", 32),
		ExpectedPayloadDigestHex: strings.Repeat("11", 32),
		ExpectedCertDigestHex:    strings.Repeat("22", 32),
		StrictCertCheck:          true,
		LogTag:                   "MyTag",
	}
	if err := want.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if *got != *want {
		t.Errorf("Read() = %+v, want %+v", got, want)
	}
}

func TestKeys_DecodesHexFields(t *testing.T) {
	aesHex := strings.Repeat("ab", aead.KeySize)
	payloadHex := strings.Repeat("11", 32)
	certHex := strings.Repeat("22", 32)

	l := &Loader{
		AESKeyHex:                aesHex,
		ExpectedPayloadDigestHex: payloadHex,
		ExpectedCertDigestHex:    certHex,
		StrictCertCheck:          true,
	}
	keys, err := l.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}

	wantAES, _ := hex.DecodeString(aesHex)
	if hex.EncodeToString(keys.AESKey[:]) != hex.EncodeToString(wantAES) {
		t.Errorf("AESKey = %x, want %x", keys.AESKey, wantAES)
	}
	if hex.EncodeToString(keys.ExpectedPayloadDigest[:]) != payloadHex {
		t.Errorf("ExpectedPayloadDigest = %x, want %s", keys.ExpectedPayloadDigest, payloadHex)
	}
	if hex.EncodeToString(keys.ExpectedCertDigest[:]) != certHex {
		t.Errorf("ExpectedCertDigest = %x, want %s", keys.ExpectedCertDigest, certHex)
	}
	if !keys.StrictCertCheck {
		t.Error("StrictCertCheck = false, want true")
	}
}

func TestKeys_EmptyHexFieldsDecodeToZeroValue(t *testing.T) {
	l := &Loader{}
	keys, err := l.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	var zeroKey [aead.KeySize]byte
	var zeroDigest [32]byte
	if keys.AESKey != zeroKey {
		t.Errorf("AESKey = %x, want all-zero", keys.AESKey)
	}
	if keys.ExpectedPayloadDigest != zeroDigest {
		t.Errorf("ExpectedPayloadDigest = %x, want all-zero", keys.ExpectedPayloadDigest)
	}
	if keys.ExpectedCertDigest != zeroDigest {
		t.Errorf("ExpectedCertDigest = %x, want all-zero", keys.ExpectedCertDigest)
	}
}

func TestKeys_RejectsWrongLengthDigest(t *testing.T) {
	l := &Loader{ExpectedPayloadDigestHex: "ab"}
	if _, err := l.Keys(); err == nil {
		t.Fatal("Keys with a short digest hex = nil error, want error")
	}
}

func TestKeys_RejectsInvalidHex(t *testing.T) {
	l := &Loader{AESKeyHex: "not-hex-zzzz"}
	if _, err := l.Keys(); err == nil {
		t.Fatal("Keys with invalid hex = nil error, want error")
	}
}

func TestResolvedLogTag_FallsBackWhenEmpty(t *testing.T) {
	l := &Loader{}
	if got := l.ResolvedLogTag(); got == "" {
		t.Error("ResolvedLogTag() with no LogTag = empty string, want the default obfuscated tag")
	}
}

func TestResolvedLogTag_PrefersExplicitValue(t *testing.T) {
	l := &Loader{LogTag: "CustomTag"}
	if got := l.ResolvedLogTag(); got != "CustomTag" {
		t.Errorf("ResolvedLogTag() = %q, want %q", got, "CustomTag")
	}
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("Decode with malformed JSON = nil error, want error")
	}
}
