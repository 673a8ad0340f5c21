// Package buildconfig defines the JSON artifact the packer CLI writes
// alongside a hardened archive and the loader's JNI layer reads back at
// process init: the key and digest material a build's --aes-key,
// --xor-key, --expected-payload-digest, --expected-cert-digest,
// --strict-cert-check, and --log-tag flags resolved to. Without this
// artifact those flags only ever reached report.Report for human
// inspection — never the running loader.
package buildconfig

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kapp-shell/kappshell/aead"
	libloader "github.com/kapp-shell/kappshell/loader"
	"github.com/kapp-shell/kappshell/obfuscate"
)

// Loader is the per-build configuration a pack run emits and a loader
// build embeds. XORKeyHex is carried here for provenance and for an
// external codegen step to consume when regenerating obfuscate.go's
// literal Key/entries table; it is intentionally not read back into
// obfuscate.Key at loader runtime (see Keys, below).
type Loader struct {
	AESKeyHex                string `json:"aes_key_hex"`
	XORKeyHex                string `json:"xor_key_hex"`
	ExpectedPayloadDigestHex string `json:"expected_payload_digest_hex"`
	ExpectedCertDigestHex    string `json:"expected_cert_digest_hex"`
	StrictCertCheck          bool   `json:"strict_cert_check"`
	LogTag                   string `json:"log_tag"`
}

// Write persists l as indented JSON to path.
func (l *Loader) Write(path string) error {
	b, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("buildconfig: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("buildconfig: write %s: %w", path, err)
	}
	return nil
}

// Read loads a Loader from path.
func Read(path string) (*Loader, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("buildconfig: read %s: %w", path, err)
	}
	var l Loader
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("buildconfig: unmarshal %s: %w", path, err)
	}
	return &l, nil
}

// Decode parses embedded JSON bytes into a Loader, for callers (the JNI
// init path) that embed buildconfig.json via go:embed rather than reading
// it off disk.
func Decode(b []byte) (*Loader, error) {
	var l Loader
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("buildconfig: unmarshal: %w", err)
	}
	return &l, nil
}

// Keys converts l into a libloader.Keys, decoding and validating every hex
// field. An empty AESKeyHex decodes to an all-zero key rather than erroring,
// matching the dev-mode placeholder checked in alongside the package.
func (l *Loader) Keys() (libloader.Keys, error) {
	var keys libloader.Keys

	aesKey, err := decodeHexExact(l.AESKeyHex, aead.KeySize)
	if err != nil {
		return keys, fmt.Errorf("buildconfig: aes_key_hex: %w", err)
	}
	copy(keys.AESKey[:], aesKey)

	payloadDigest, err := decodeDigestHex(l.ExpectedPayloadDigestHex)
	if err != nil {
		return keys, fmt.Errorf("buildconfig: expected_payload_digest_hex: %w", err)
	}
	keys.ExpectedPayloadDigest = payloadDigest

	certDigest, err := decodeDigestHex(l.ExpectedCertDigestHex)
	if err != nil {
		return keys, fmt.Errorf("buildconfig: expected_cert_digest_hex: %w", err)
	}
	keys.ExpectedCertDigest = certDigest

	keys.StrictCertCheck = l.StrictCertCheck
	return keys, nil
}

// ResolvedLogTag returns LogTag, falling back to the default obfuscated tag
// when the artifact carries none.
func (l *Loader) ResolvedLogTag() string {
	if l.LogTag != "" {
		return l.LogTag
	}
	return obfuscate.Decode(obfuscate.IDLogTag)
}

// decodeHexExact decodes hexStr into exactly size bytes. An empty hexStr
// decodes to size zero bytes (all-zero key), matching resolveKey's
// random-if-omitted convention at pack time degrading to an inert default
// when a build artifact is read back without ever having been generated by
// a pack run.
func decodeHexExact(hexStr string, size int) ([]byte, error) {
	if hexStr == "" {
		return make([]byte, size), nil
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("must decode to %d bytes, got %d", size, len(b))
	}
	return b, nil
}

// decodeDigestHex decodes hexStr into a [32]byte digest. An empty hexStr
// decodes to the all-zero digest, which loader.Keys treats as "check
// disabled".
func decodeDigestHex(hexStr string) ([32]byte, error) {
	var digest [32]byte
	if hexStr == "" {
		return digest, nil
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return digest, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != len(digest) {
		return digest, fmt.Errorf("must decode to %d bytes, got %d", len(digest), len(b))
	}
	copy(digest[:], b)
	return digest, nil
}
