// Package loader implements the device-side half of the protocol `format`
// and `aead` define: integrity verification, payload extraction and
// decryption, asset materialization, current-ABI native-library filtering,
// and file-landing reinstatement. Everything in this package is
// host-runtime-independent and fully unit-testable; the class loader splice
// and the three FFI entry points require a live JVM and live in loader/jni.
package loader

import (
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kapp-shell/kappshell/aead"
	"github.com/kapp-shell/kappshell/archive"
	"github.com/kapp-shell/kappshell/format"
)

// PayloadPath is the well-known archive-relative location of the payload
// blob.
const PayloadPath = "assets/kapp_payload.bin"

// AssetsZipRelPath is where reinstated assets land, relative to the data
// directory.
const AssetsZipRelPath = "files/kapp_assets.zip"

// IntegrityError reports a payload or certificate digest mismatch.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string { return "loader: integrity: " + e.Reason }

// Keys carries the build-time injected key and digest material.
type Keys struct {
	AESKey                [aead.KeySize]byte
	ExpectedPayloadDigest [32]byte
	ExpectedCertDigest    [32]byte
	// StrictCertCheck makes a certificate digest mismatch abort the load
	// (IntegrityError) instead of merely being logged. Defaults to false,
	// matching lenient handling of certificate rotation during rollout.
	StrictCertCheck bool
}

// Result summarizes what one Load call reinstated on disk.
type Result struct {
	DexPaths       []string
	NativeLibPaths []string
	AssetsZipPath  string // empty if no assets/ entries were present
}

var allZeroDigest [32]byte

// CurrentABI reports the running binary's Android ABI tag, determined at
// compile time from the Go architecture. Unrecognized architectures report
// "unknown", matching every other ABI directory being ignored.
func CurrentABI() string {
	switch runtime.GOARCH {
	case "arm64":
		return "arm64-v8a"
	case "arm":
		return "armeabi-v7a"
	case "386":
		return "x86"
	case "amd64":
		return "x86_64"
	default:
		return "unknown"
	}
}

// Load verifies, decrypts, and reinstates the payload found in the archive
// at archivePath. certDigest is the SHA-256 of the live signing
// certificate's DER bytes when a Context was available to fetch it (nil
// when called via the AppInfo entry point, which skips Context-dependent
// checks). logger receives non-fatal diagnostics (e.g. a certificate-digest
// mismatch under the default lenient policy); a nil logger sends them to
// standard error.
func Load(archivePath, cacheDir, dataDir string, keys Keys, certDigest *[32]byte, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	blob, err := archive.ReadEntry(archivePath, PayloadPath)
	if err != nil {
		return nil, fmt.Errorf("loader: read payload entry: %w", err)
	}

	if err := verifyIntegrity(blob, certDigest, keys, logger); err != nil {
		return nil, err
	}

	entries, err := format.Parse(blob)
	if err != nil {
		return nil, fmt.Errorf("loader: parse payload: %w", err)
	}

	plaintexts := make([]struct {
		Name string
		Data []byte
	}, 0, len(entries))
	for _, e := range entries {
		plain, err := aead.Decrypt(keys.AESKey, e.Ciphertext, e.Nonce)
		if err != nil {
			return nil, fmt.Errorf("loader: decrypt entry %s: %w", e.Name, err)
		}
		plaintexts = append(plaintexts, struct {
			Name string
			Data []byte
		}{e.Name, plain})
	}

	result := &Result{}

	assetsZip, err := materializeAssets(dataDir, plaintexts)
	if err != nil {
		return nil, err
	}
	result.AssetsZipPath = assetsZip

	currentABI := CurrentABI()
	for i, e := range plaintexts {
		switch {
		case strings.HasPrefix(e.Name, "assets/"):
			continue
		case isDexName(e.Name):
			path, err := landDex(cacheDir, i, e.Data)
			if err != nil {
				return nil, err
			}
			result.DexPaths = append(result.DexPaths, path)
		case isLibName(e.Name):
			abi, base := splitLibPath(e.Name)
			if abi != currentABI {
				continue
			}
			path, err := landNativeLib(cacheDir, base, e.Data)
			if err != nil {
				return nil, err
			}
			result.NativeLibPaths = append(result.NativeLibPaths, path)
		}
	}

	return result, nil
}

// verifyIntegrity checks the payload and (optionally) certificate digests.
// The payload digest check is fatal unless the expected digest is all-zero
// (development mode); the
// certificate digest check is policy — logged by default, fatal only when
// keys.StrictCertCheck is set.
func verifyIntegrity(blob []byte, certDigest *[32]byte, keys Keys, logger *log.Logger) error {
	if keys.ExpectedPayloadDigest != allZeroDigest {
		got := sha256.Sum256(blob)
		if got != keys.ExpectedPayloadDigest {
			return &IntegrityError{Reason: "payload digest mismatch"}
		}
	}

	if certDigest != nil && keys.ExpectedCertDigest != allZeroDigest {
		if *certDigest != keys.ExpectedCertDigest {
			if keys.StrictCertCheck {
				return &IntegrityError{Reason: "certificate digest mismatch"}
			}
			logger.Printf("loader: certificate digest mismatch (continuing: strict check disabled)")
		}
	}

	return nil
}

// materializeAssets packs any decrypted entry whose name begins with
// "assets/" into a STORE-only ZIP under the data directory. Returns the
// empty string when no asset entries exist.
func materializeAssets(dataDir string, entries []struct {
	Name string
	Data []byte
}) (string, error) {
	type asset struct {
		Name string
		Data []byte
	}
	var assets []asset
	for _, e := range entries {
		if strings.HasPrefix(e.Name, "assets/") {
			assets = append(assets, asset{e.Name, e.Data})
		}
	}
	if len(assets) == 0 {
		return "", nil
	}

	zipPath := filepath.Join(dataDir, filepath.FromSlash(AssetsZipRelPath))
	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		return "", fmt.Errorf("loader: create assets parent dir: %w", err)
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("loader: create assets zip %s: %w", zipPath, err)
	}
	defer f.Close()

	w := archive.NewWriter(f)
	for _, a := range assets {
		if err := w.WriteStored(a.Name, a.Data); err != nil {
			return "", fmt.Errorf("loader: write asset %s: %w", a.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("loader: finalize assets zip: %w", err)
	}
	return zipPath, nil
}

func isDexName(name string) bool {
	return strings.HasPrefix(name, "classes") && strings.HasSuffix(name, ".dex")
}

func isLibName(name string) bool {
	return strings.HasPrefix(name, "lib/") && strings.HasSuffix(name, ".so")
}

// splitLibPath splits "lib/<abi>/<basename>" into its ABI and basename
// components.
func splitLibPath(name string) (abi, base string) {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 3 {
		return "", ""
	}
	return parts[1], parts[2]
}

// landDex writes a decrypted executable section to
// <cache_dir>/dex_landing/payload_<i>.dex, mode 0444.
func landDex(cacheDir string, idx int, data []byte) (string, error) {
	dir := filepath.Join(cacheDir, "dex_landing")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("loader: create dex_landing dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("payload_%d.dex", idx))
	if err := writeReadOnly(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// landNativeLib writes a decrypted native library to
// <cache_dir>/native_libs/<basename>, mode 0444. basename is reduced to its
// final path element before joining: the entry name it derives from lives
// in the payload's plaintext metadata, which is not itself authenticated by
// the per-entry AEAD tag, so a tampered archive (one whose payload digest
// check is disabled in development mode) must not be able to use a
// "../"-laden name to write outside native_libs.
func landNativeLib(cacheDir, basename string, data []byte) (string, error) {
	dir := filepath.Join(cacheDir, "native_libs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("loader: create native_libs dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(basename))
	if err := writeReadOnly(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeReadOnly writes data to path and then chmods it to 0444, narrowing
// the substitution window between write and use.
func writeReadOnly(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("loader: write %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o444); err != nil {
		// POSIX permission bits may not be meaningful on every host
		// filesystem; this is logged-worthy but not fatal to the load.
		if !os.IsPermission(err) {
			return fmt.Errorf("loader: chmod %s read-only: %w", path, err)
		}
	}
	return nil
}
