// Package obfuscate keeps a table of strings that would reveal the loader's
// behavior, XOR-encoded against a 32-byte per-build key and decoded fresh on
// every use — a decoded value is never memoized to a package-level variable.
// The table is encoded at process init from the plaintext literals in
// plaintextByID, so a static string dump of a binary built from this source
// still shows those literals.
package obfuscate

// KeySize is the XOR key length.
const KeySize = 32

// IDs of the table entries, one per string whose plaintext presence in the
// binary would help a reverse engineer: the debugger-probe file, the
// TracerPid marker, the payload's archive-relative path, the log tag, and
// the format magic. IDs are exported so loader/jni can reference them
// without importing the raw strings.
const (
	IDProcStatusPath = iota
	IDTracerPidPrefix
	IDPayloadPath
	IDLogTag
	IDMagic
)

// entries is populated by init from plaintext literals XORed against Key.
// This mirrors how a real build pipeline would inject the table (a codegen
// step runs once per build with a fresh random Key and writes out the
// encoded bytes); here the encoding happens at process init time against a
// key that a real build would instead bake in as a literal array.
var entries [][]byte

// Key is the build-time XOR key. A development default is provided so the
// package is usable without a build step; production builds must replace it
// before linking, just as the loader's AEAD key is build-time-injected
// through buildconfig.
var Key = [KeySize]byte{
	0x4b, 0x41, 0x50, 0x50, 0x53, 0x48, 0x45, 0x4c,
	0x4c, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
	0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
}

var plaintextByID = [...]string{
	IDProcStatusPath:  "/proc/self/status",
	IDTracerPidPrefix: "TracerPid:",
	IDPayloadPath:     "assets/kapp_payload.bin",
	IDLogTag:          "KAppShell",
	IDMagic:           "SHELL",
}

func init() {
	entries = make([][]byte, len(plaintextByID))
	for id, s := range plaintextByID {
		entries[id] = xorWithKey([]byte(s), Key)
	}
}

func xorWithKey(b []byte, key [KeySize]byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c ^ key[i%KeySize]
	}
	return out
}

// Decode returns the plaintext string for id, decoding it fresh from the
// obfuscated table. Callers must not cache the result across the boundary
// where a memory dump could recover it at rest.
func Decode(id int) string {
	return string(xorWithKey(entries[id], Key))
}
