// Package format implements the payload blob wire format shared by the
// packer and the loader: ciphertexts, a length-prefixed metadata descriptor,
// and a fixed 9-byte footer. Both Build and Parse must agree bit-exactly on
// endianness, field widths, and record ordering — see the ciphertext
// ordering note on Parse below before changing anything here.
package format

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Magic is the 5-byte footer identity. Build and Parse, on both the packer
// and the loader side, work with this plaintext constant; the obfuscate
// package's IDMagic entry is not consulted by either.
const Magic = "SHELL"

// footerLen is the fixed size of [metadata_len u32 LE][magic 5 bytes].
const footerLen = 4 + len(Magic)

// nonceLen is the AES-GCM nonce size used for every entry (aead.NonceSize).
const nonceLen = 12

// Entry is one payload candidate: its archive-relative name, its AEAD
// ciphertext (tag included), and the nonce it was encrypted under. Entry
// does not know whether Ciphertext has been decrypted — format only moves
// bytes, aead does the cryptography.
type Entry struct {
	Name       string
	Ciphertext []byte
	Nonce      [nonceLen]byte
}

// FormatError reports a malformed or inconsistent blob. The loader maps
// every FormatError to an early return with a logged message.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "format: " + e.Reason }

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// Build serializes entries into the on-wire blob: ciphertexts concatenated
// in slice order, then the metadata descriptor, then the footer. The order
// of entries in the returned blob is exactly the order of the input slice —
// callers that need a specific on-device read order (e.g. the packer's
// candidate-iteration order) must sort entries before calling Build.
func Build(entries []Entry) ([]byte, error) {
	for _, e := range entries {
		if !utf8.ValidString(e.Name) {
			return nil, formatErrorf("entry name %q is not valid UTF-8", e.Name)
		}
		if len(e.Name) > 1<<16-1 {
			return nil, formatErrorf("entry name %q exceeds 65535 bytes", e.Name)
		}
	}

	var blob []byte
	for _, e := range entries {
		blob = append(blob, e.Ciphertext...)
	}

	metadata := buildMetadata(entries)
	blob = append(blob, metadata...)

	footer := make([]byte, footerLen)
	binary.LittleEndian.PutUint32(footer[0:4], uint32(len(metadata)))
	copy(footer[4:], Magic)
	blob = append(blob, footer...)

	return blob, nil
}

// buildMetadata serializes the [N][records...] descriptor: a 4-byte LE
// count followed by, per entry in order,
// [name_len u16 LE][name][cipher_len u32 LE][nonce 12 bytes].
func buildMetadata(entries []Entry) []byte {
	meta := make([]byte, 4, 4+estimateRecordBytes(entries))
	binary.LittleEndian.PutUint32(meta[0:4], uint32(len(entries)))

	for _, e := range entries {
		nameBytes := []byte(e.Name)
		rec := make([]byte, 2+len(nameBytes)+4+nonceLen)
		binary.LittleEndian.PutUint16(rec[0:2], uint16(len(nameBytes)))
		copy(rec[2:2+len(nameBytes)], nameBytes)
		off := 2 + len(nameBytes)
		binary.LittleEndian.PutUint32(rec[off:off+4], uint32(len(e.Ciphertext)))
		copy(rec[off+4:], e.Nonce[:])
		meta = append(meta, rec...)
	}
	return meta
}

func estimateRecordBytes(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += 2 + len(e.Name) + 4 + nonceLen
	}
	return total
}

// Parse recovers entries from a blob built by Build. It reads back-to-front:
// footer, then metadata (sized by the footer), then the ciphertext region,
// whose per-entry boundaries are computed purely from the cumulative
// cipher_len series in metadata order — there is no per-ciphertext
// delimiter. Misreading one length therefore misaligns every subsequent
// read; this is intentional and must not be "fixed" by adding delimiters,
// which would break wire compatibility.
func Parse(blob []byte) ([]Entry, error) {
	if len(blob) < footerLen {
		return nil, formatErrorf("blob is %d bytes, shorter than the %d-byte footer", len(blob), footerLen)
	}

	footer := blob[len(blob)-footerLen:]
	if string(footer[4:]) != Magic {
		return nil, formatErrorf("bad magic %q, want %q", footer[4:], Magic)
	}
	metadataLen := binary.LittleEndian.Uint32(footer[0:4])

	metadataStart, ok := subUint(uint64(len(blob)), uint64(footerLen), uint64(metadataLen))
	if !ok {
		return nil, formatErrorf("metadata_len %d is inconsistent with blob length %d", metadataLen, len(blob))
	}
	metadata := blob[metadataStart : metadataStart+uint64(metadataLen)]

	records, err := parseMetadata(metadata)
	if err != nil {
		return nil, err
	}

	var totalCipherLen uint64
	for _, r := range records {
		totalCipherLen += uint64(r.cipherLen)
	}
	payloadStart, ok := subUint(metadataStart, totalCipherLen)
	if !ok {
		return nil, formatErrorf("cipher_len total %d exceeds the space before metadata", totalCipherLen)
	}

	entries := make([]Entry, len(records))
	cursor := payloadStart
	for i, r := range records {
		entries[i] = Entry{
			Name:       r.name,
			Ciphertext: blob[cursor : cursor+uint64(r.cipherLen)],
			Nonce:      r.nonce,
		}
		cursor += uint64(r.cipherLen)
	}
	return entries, nil
}

type metadataRecord struct {
	name      string
	cipherLen uint32
	nonce     [nonceLen]byte
}

func parseMetadata(metadata []byte) ([]metadataRecord, error) {
	if len(metadata) < 4 {
		return nil, formatErrorf("metadata block is %d bytes, shorter than the 4-byte count field", len(metadata))
	}
	n := binary.LittleEndian.Uint32(metadata[0:4])
	cursor := 4

	records := make([]metadataRecord, 0, n)
	for i := uint32(0); i < n; i++ {
		if cursor+2 > len(metadata) {
			return nil, formatErrorf("metadata record %d: truncated name length", i)
		}
		nameLen := int(binary.LittleEndian.Uint16(metadata[cursor : cursor+2]))
		cursor += 2

		if cursor+nameLen > len(metadata) {
			return nil, formatErrorf("metadata record %d: truncated name", i)
		}
		nameBytes := metadata[cursor : cursor+nameLen]
		if !utf8.Valid(nameBytes) {
			return nil, formatErrorf("metadata record %d: name is not valid UTF-8", i)
		}
		name := string(nameBytes)
		cursor += nameLen

		if cursor+4+nonceLen > len(metadata) {
			return nil, formatErrorf("metadata record %d: truncated size/nonce", i)
		}
		cipherLen := binary.LittleEndian.Uint32(metadata[cursor : cursor+4])
		cursor += 4

		var nonce [nonceLen]byte
		copy(nonce[:], metadata[cursor:cursor+nonceLen])
		cursor += nonceLen

		records = append(records, metadataRecord{name: name, cipherLen: cipherLen, nonce: nonce})
	}

	if cursor != len(metadata) {
		return nil, formatErrorf("metadata block has %d trailing bytes after %d records", len(metadata)-cursor, n)
	}
	return records, nil
}

// subUint subtracts a series of values from base, returning (0, false) if
// any intermediate result would underflow — the uint64 analogue of Rust's
// checked_sub chain the original loader used to validate footer/metadata
// offsets before trusting them.
func subUint(base uint64, subs ...uint64) (uint64, bool) {
	v := base
	for _, s := range subs {
		if s > v {
			return 0, false
		}
		v -= s
	}
	return v, true
}
