package loader

import (
	"archive/zip"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/kapp-shell/kappshell/aead"
	"github.com/kapp-shell/kappshell/format"
)

func testKey() [aead.KeySize]byte {
	var k [aead.KeySize]byte
	for i := range k {
		k[i] = byte(i * 3)
	}
	return k
}

// buildFixtureArchive packs the given plaintext entries into a payload blob
// and writes a minimal host archive at path containing just that blob,
// mirroring what the packer would have produced.
func buildFixtureArchive(t *testing.T, path string, key [aead.KeySize]byte, plain map[string][]byte) []byte {
	t.Helper()
	var entries []format.Entry
	for name, data := range plain {
		ct, nonce, err := aead.Encrypt(key, data)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		entries = append(entries, format.Entry{Name: name, Ciphertext: ct, Nonce: nonce})
	}
	blob, err := format.Build(entries)
	if err != nil {
		t.Fatalf("format.Build: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: PayloadPath, Method: zip.Store})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(blob); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return blob
}

func TestLoad_LandsDexAndNativeLibForCurrentABI(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "host.apk")
	cacheDir := filepath.Join(dir, "cache")
	dataDir := filepath.Join(dir, "data")
	key := testKey()

	currentABI := CurrentABI()
	plain := map[string][]byte{
		"classes.dex":                            {0x01, 0x02},
		"lib/" + currentABI + "/libA.so":          {0x10, 0x11, 0x12},
		"lib/definitely-not-" + currentABI + "/libA.so": {0x99},
	}
	buildFixtureArchive(t, archivePath, key, plain)

	keys := Keys{AESKey: key}
	result, err := Load(archivePath, cacheDir, dataDir, keys, nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(result.DexPaths) != 1 {
		t.Fatalf("len(DexPaths) = %d, want 1", len(result.DexPaths))
	}
	data, err := os.ReadFile(result.DexPaths[0])
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", result.DexPaths[0], err)
	}
	if string(data) != "\x01\x02" {
		t.Errorf("dex content = %v, want [0x01 0x02]", data)
	}
	info, err := os.Stat(result.DexPaths[0])
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o444 {
		t.Errorf("dex file mode = %v, want 0444", info.Mode().Perm())
	}

	if len(result.NativeLibPaths) != 1 {
		t.Fatalf("len(NativeLibPaths) = %d, want 1 (only current ABI %s)", len(result.NativeLibPaths), currentABI)
	}
	if filepath.Base(result.NativeLibPaths[0]) != "libA.so" {
		t.Errorf("native lib basename = %q, want libA.so", filepath.Base(result.NativeLibPaths[0]))
	}
}

// TestLoad_NativeLibBasenameTraversalIsContained verifies that a
// maliciously named native-library entry cannot escape cacheDir/native_libs:
// an entry name's basename is attacker-influenced plaintext metadata, not
// covered by the per-entry AEAD tag, so "../" components in it must not
// reach the filesystem join.
func TestLoad_NativeLibBasenameTraversalIsContained(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "host.apk")
	cacheDir := filepath.Join(dir, "cache")
	dataDir := filepath.Join(dir, "data")
	key := testKey()

	currentABI := CurrentABI()
	plain := map[string][]byte{
		"lib/" + currentABI + "/../../../../tmp/evil.so": {0xEE},
	}
	buildFixtureArchive(t, archivePath, key, plain)

	keys := Keys{AESKey: key}
	result, err := Load(archivePath, cacheDir, dataDir, keys, nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.NativeLibPaths) != 1 {
		t.Fatalf("len(NativeLibPaths) = %d, want 1", len(result.NativeLibPaths))
	}
	landed := result.NativeLibPaths[0]
	nativeLibsDir := filepath.Join(cacheDir, "native_libs")
	if filepath.Dir(landed) != nativeLibsDir {
		t.Errorf("landed native lib path = %q, escaped %q", landed, nativeLibsDir)
	}
	if filepath.Base(landed) != "evil.so" {
		t.Errorf("landed native lib basename = %q, want evil.so", filepath.Base(landed))
	}
}

func TestLoad_MaterializesAssetsAsStoreZip(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "host.apk")
	cacheDir := filepath.Join(dir, "cache")
	dataDir := filepath.Join(dir, "data")
	key := testKey()

	plain := map[string][]byte{
		"assets/config.json": []byte(`{"k":1}`),
	}
	buildFixtureArchive(t, archivePath, key, plain)

	keys := Keys{AESKey: key}
	result, err := Load(archivePath, cacheDir, dataDir, keys, nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.AssetsZipPath == "" {
		t.Fatal("AssetsZipPath is empty, want a path")
	}

	zr, err := zip.OpenReader(result.AssetsZipPath)
	if err != nil {
		t.Fatalf("open assets zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 {
		t.Fatalf("len(zr.File) = %d, want 1", len(zr.File))
	}
	if zr.File[0].Name != "assets/config.json" {
		t.Errorf("asset name = %q, want assets/config.json", zr.File[0].Name)
	}
	if zr.File[0].Method != zip.Store {
		t.Errorf("asset method = %v, want zip.Store", zr.File[0].Method)
	}
}

func TestLoad_DevModeSkipsPayloadDigestCheck(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "host.apk")
	key := testKey()
	buildFixtureArchive(t, archivePath, key, map[string][]byte{"classes.dex": {0x01}})

	keys := Keys{AESKey: key} // ExpectedPayloadDigest left all-zero
	_, err := Load(archivePath, filepath.Join(dir, "cache"), filepath.Join(dir, "data"), keys, nil, nil)
	if err != nil {
		t.Fatalf("Load with all-zero expected digest = %v, want nil (dev mode bypass)", err)
	}
}

func TestLoad_PayloadDigestMismatchIsFatal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "host.apk")
	key := testKey()
	buildFixtureArchive(t, archivePath, key, map[string][]byte{"classes.dex": {0x01}})

	var wrongDigest [32]byte
	wrongDigest[0] = 0xFF // guaranteed not to match the true digest
	keys := Keys{AESKey: key, ExpectedPayloadDigest: wrongDigest}

	_, err := Load(archivePath, filepath.Join(dir, "cache"), filepath.Join(dir, "data"), keys, nil, nil)
	if err == nil {
		t.Fatal("Load with mismatched payload digest = nil error, want IntegrityError")
	}
	if _, ok := err.(*IntegrityError); !ok {
		t.Errorf("error type = %T, want *IntegrityError", err)
	}
}

func TestLoad_CertDigestMismatchLenientByDefault(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "host.apk")
	key := testKey()
	buildFixtureArchive(t, archivePath, key, map[string][]byte{"classes.dex": {0x01}})

	actualCert := sha256.Sum256([]byte("actual cert bytes"))
	var expectedCert [32]byte
	expectedCert[0] = 0xEE // deliberately different

	keys := Keys{AESKey: key, ExpectedCertDigest: expectedCert, StrictCertCheck: false}
	_, err := Load(archivePath, filepath.Join(dir, "cache"), filepath.Join(dir, "data"), keys, &actualCert, nil)
	if err != nil {
		t.Fatalf("Load with lenient cert mismatch = %v, want nil", err)
	}
}

func TestLoad_CertDigestMismatchFatalWhenStrict(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "host.apk")
	key := testKey()
	buildFixtureArchive(t, archivePath, key, map[string][]byte{"classes.dex": {0x01}})

	actualCert := sha256.Sum256([]byte("actual cert bytes"))
	var expectedCert [32]byte
	expectedCert[0] = 0xEE

	keys := Keys{AESKey: key, ExpectedCertDigest: expectedCert, StrictCertCheck: true}
	_, err := Load(archivePath, filepath.Join(dir, "cache"), filepath.Join(dir, "data"), keys, &actualCert, nil)
	if err == nil {
		t.Fatal("Load with strict cert mismatch = nil error, want IntegrityError")
	}
}

func TestCurrentABI_ReturnsKnownTag(t *testing.T) {
	known := map[string]bool{"arm64-v8a": true, "armeabi-v7a": true, "x86": true, "x86_64": true, "unknown": true}
	if got := CurrentABI(); !known[got] {
		t.Errorf("CurrentABI() = %q, not one of the recognised tags", got)
	}
}
