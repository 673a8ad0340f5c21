// Package archive provides thin streaming helpers over archive/zip for the
// packer's copy-with-substitution rewrite. It follows the same
// header-preserving, entry-at-a-time idiom AOSP's own zip tooling uses:
// read each source entry's FileHeader, copy or substitute its bytes, and
// write it back with CreateHeader so the compression method travels with
// the data instead of being re-derived.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
)

// ArchiveError wraps any I/O or zip-format failure encountered while reading
// or writing an archive.
type ArchiveError struct {
	Reason string
	Err    error
}

func (e *ArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive: %s: %v", e.Reason, e.Err)
	}
	return "archive: " + e.Reason
}

func (e *ArchiveError) Unwrap() error { return e.Err }

func wrapErr(reason string, err error) error {
	if err == nil {
		return nil
	}
	return &ArchiveError{Reason: reason, Err: err}
}

// Entry is one archive entry as returned by ReadEntries: its header (name,
// compression method) and its fully read contents, so callers can inspect
// headers without re-reading from disk. Used by the packer, whose candidate
// scan and rewrite pass both need full entry contents.
type Entry struct {
	Header *zip.FileHeader
	Data   []byte
}

// ReadEntries reads every entry of the zip archive at path fully into
// memory, preserving iteration order.
func ReadEntries(path string) ([]Entry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("open %s", path), err)
	}
	defer zr.Close()

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("open entry %s", f.Name), err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("read entry %s", f.Name), err)
		}
		entries = append(entries, Entry{Header: &f.FileHeader, Data: data})
	}
	return entries, nil
}

// ReadEntry reads a single named entry from the zip archive at path without
// materializing the rest of the archive in memory — used by the loader,
// which only ever needs the payload entry out of a potentially large host
// archive.
func ReadEntry(path, name string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("open %s", path), err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("open entry %s", name), err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("read entry %s", name), err)
		}
		return data, nil
	}
	return nil, &ArchiveError{Reason: fmt.Sprintf("entry %s not found in %s", name, path)}
}

// Writer wraps *zip.Writer with the two write modes the packer needs: a
// pass-through copy that preserves the source's compression method, and an
// explicit-method write for newly constructed sections (bootstrap code,
// native libraries, the payload blob) that must land uncompressed.
type Writer struct {
	zw *zip.Writer
}

// NewWriter returns a Writer that streams into w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w)}
}

// Close finalizes the underlying zip.Writer.
func (w *Writer) Close() error {
	return wrapErr("close writer", w.zw.Close())
}

// CopyEntry writes data under a header cloned from src, preserving Method,
// Modified time, and other metadata exactly as AOSP's soong_jar/zipsync
// tooling does when re-packing an archive entry-by-entry.
func (w *Writer) CopyEntry(src *zip.FileHeader, data []byte) error {
	hdr := *src
	out, err := w.zw.CreateHeader(&hdr)
	if err != nil {
		return wrapErr(fmt.Sprintf("create entry %s", src.Name), err)
	}
	if _, err := out.Write(data); err != nil {
		return wrapErr(fmt.Sprintf("write entry %s", src.Name), err)
	}
	return nil
}

// WriteStored writes a brand-new entry named name with data, stored
// uncompressed — used for bootstrap executable sections, bootstrap native
// libraries, and the payload blob, all of which must land with no
// compression.
func (w *Writer) WriteStored(name string, data []byte) error {
	hdr := &zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	}
	hdr.SetMode(0o644)
	out, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return wrapErr(fmt.Sprintf("create entry %s", name), err)
	}
	if _, err := out.Write(data); err != nil {
		return wrapErr(fmt.Sprintf("write entry %s", name), err)
	}
	return nil
}
