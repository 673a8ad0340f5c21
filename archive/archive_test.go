package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeFixtureZip(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.zip")
	writeFixtureZip(t, path, map[string][]byte{
		"a.txt": []byte("hello"),
		"b.txt": []byte("world"),
	})

	entries, err := ReadEntries(path)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	seen := map[string][]byte{}
	for _, e := range entries {
		seen[e.Header.Name] = e.Data
	}
	if !bytes.Equal(seen["a.txt"], []byte("hello")) {
		t.Errorf("a.txt = %q, want hello", seen["a.txt"])
	}
	if !bytes.Equal(seen["b.txt"], []byte("world")) {
		t.Errorf("b.txt = %q, want world", seen["b.txt"])
	}
}

func TestReadEntry_MissingReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.zip")
	writeFixtureZip(t, path, map[string][]byte{"a.txt": []byte("hello")})

	_, err := ReadEntry(path, "missing.txt")
	if err == nil {
		t.Fatal("ReadEntry(missing) = nil error, want ArchiveError")
	}
}

func TestWriter_CopyEntryPreservesMethod(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.zip")
	writeFixtureZip(t, src, map[string][]byte{"stored.txt": []byte("abc")})
	srcEntries, err := ReadEntries(src)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.zip")
	f, err := os.Create(out)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWriter(f)
	for _, e := range srcEntries {
		if err := w.CopyEntry(e.Header, e.Data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 1 {
		t.Fatalf("len(zr.File) = %d, want 1", len(zr.File))
	}
	if zr.File[0].Method != zip.Deflate {
		t.Errorf("Method = %v, want zip.Deflate (preserved from source)", zr.File[0].Method)
	}
}

func TestWriter_WriteStoredUsesStoreMethod(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.zip")
	f, err := os.Create(out)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWriter(f)
	if err := w.WriteStored("blob.bin", []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if zr.File[0].Method != zip.Store {
		t.Errorf("Method = %v, want zip.Store", zr.File[0].Method)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	buf.ReadFrom(rc)
	if !bytes.Equal(buf.Bytes(), []byte{1, 2, 3, 4}) {
		t.Errorf("data = %v, want [1 2 3 4]", buf.Bytes())
	}
}
