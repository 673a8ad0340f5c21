// Package packer transforms a target application archive into a hardened
// archive: candidate executable and native-code entries are selected,
// encrypted into a self-describing payload blob, and the archive is
// rewritten so that only bootstrap code and the embedded payload remain
// visible. It is the host-side half of the protocol `format` and `aead`
// define; `loader` is the device-side counterpart.
package packer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/kapp-shell/kappshell/aead"
	"github.com/kapp-shell/kappshell/archive"
	"github.com/kapp-shell/kappshell/format"
	"github.com/kapp-shell/kappshell/report"
)

// PayloadPath is the well-known archive-relative location of the payload
// blob.
const PayloadPath = "assets/kapp_payload.bin"

// ConfigError reports an invalid or incomplete packer configuration: no
// candidates found, missing bootstrap sections, unreadable inputs.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "packer: " + e.Reason }

// Config collects every input the Pack operation needs. It is the
// lower-level counterpart of config.Conf: cmd/pack.go translates cobra
// flags into this struct, decoding hex key material along the way.
type Config struct {
	TargetPath    string
	OutputPath    string
	BootstrapPath string
	BootstrapLibs string // directory, one subdirectory per ABI
	ManifestPath  string // optional override, empty = copy through
	ResourcesPath string // optional override, empty = copy through

	KeepClasses  []string // dotted or descriptor form, e.g. "com.example.Foo"
	KeepPrefixes []string // dotted package prefix, e.g. "com.example"
	KeepLibs     []string // basenames, with or without "lib"/".so"

	AESKey [aead.KeySize]byte

	BuildID string
}

// dexCandidateRE's capture group matches a positive integer with no leading
// zero, or nothing at all (classes.dex, index 1) — classes0.dex and
// classes007.dex are deliberately rejected, matching Android's own
// multidex naming convention (classes.dex, classes2.dex, classes3.dex, ...
// never classes0.dex or zero-padded indices).
var dexCandidateRE = regexp.MustCompile(`^classes([1-9][0-9]*)?\.dex$`)
var libCandidateRE = regexp.MustCompile(`^lib/([^/]+)/([^/]+\.so)$`)

// isCandidate reports whether name is a payload candidate: classes<k>.dex
// (k empty or a positive integer) or lib/<abi>/<name>.so.
func isCandidate(name string) bool {
	if dexCandidateRE.MatchString(name) {
		return true
	}
	return libCandidateRE.MatchString(name)
}

// classDescriptor converts a dotted or already-descriptor-form class name
// into its JVM descriptor form "Lcom/example/Foo;". Names already in
// descriptor form (starting with "L" and ending with ";") pass through
// unchanged.
func classDescriptor(class string) string {
	if strings.HasPrefix(class, "L") && strings.HasSuffix(class, ";") {
		return class
	}
	return "L" + strings.ReplaceAll(class, ".", "/") + ";"
}

// prefixDescriptor converts a dotted package prefix into its descriptor
// prefix form "Lcom/example/".
func prefixDescriptor(prefix string) string {
	if strings.HasPrefix(prefix, "L") {
		return prefix
	}
	return "L" + strings.ReplaceAll(prefix, ".", "/") + "/"
}

// libNameVariants returns the three basename spellings accepted for a
// keep-libs entry: "X", "libX.so", "X.so".
func libNameVariants(name string) []string {
	base := strings.TrimSuffix(strings.TrimPrefix(name, "lib"), ".so")
	return []string{base, "lib" + base + ".so", base + ".so"}
}

// shouldRetainDex reports whether a .dex entry's raw bytes contain any
// keep-class or keep-prefix descriptor as a substring — intentionally a
// coarse substring match, not a parser.
func shouldRetainDex(data []byte, keepClasses, keepPrefixes []string) bool {
	for _, c := range keepClasses {
		if strings.Contains(string(data), classDescriptor(c)) {
			return true
		}
	}
	for _, p := range keepPrefixes {
		if strings.Contains(string(data), prefixDescriptor(p)) {
			return true
		}
	}
	return false
}

// shouldRetainLib reports whether a native library's basename matches any
// keep-libs entry.
func shouldRetainLib(entryName string, keepLibs []string) bool {
	base := path.Base(entryName)
	for _, k := range keepLibs {
		for _, variant := range libNameVariants(k) {
			if base == variant {
				return true
			}
		}
	}
	return false
}

// Pack runs the full packer pipeline and returns a populated report.Report,
// or a nil report and the error when any step fails.
func Pack(cfg Config) (*report.Report, error) {
	rpt := report.New(cfg.BuildID)

	targetEntries, err := archive.ReadEntries(cfg.TargetPath)
	if err != nil {
		return nil, fmt.Errorf("packer: read target %s: %w", cfg.TargetPath, err)
	}

	bootstrapEntries, err := archive.ReadEntries(cfg.BootstrapPath)
	if err != nil {
		return nil, fmt.Errorf("packer: read bootstrap %s: %w", cfg.BootstrapPath, err)
	}
	bootstrapDex := collectBootstrapDex(bootstrapEntries)
	if len(bootstrapDex) == 0 {
		return nil, &ConfigError{Reason: "bootstrap archive contains no classes*.dex sections"}
	}

	bootstrapLibs, err := collectBootstrapLibs(cfg.BootstrapLibs)
	if err != nil {
		return nil, err
	}
	if len(bootstrapLibs) == 0 {
		return nil, &ConfigError{Reason: "bootstrap library directory contains no ABI subdirectories"}
	}

	var manifestOverride, resourcesOverride []byte
	if cfg.ManifestPath != "" {
		manifestOverride, err = readOverride(cfg.ManifestPath)
		if err != nil {
			return nil, err
		}
	}
	if cfg.ResourcesPath != "" {
		resourcesOverride, err = readOverride(cfg.ResourcesPath)
		if err != nil {
			return nil, err
		}
	}

	var (
		blobEntries     []format.Entry
		retainedDex     []archive.Entry // sorted by original section index after the scan
		retainedLibs    []archive.Entry // written back under their own lib/<abi>/<name>.so path
		passthrough     []archive.Entry
		sawAnyCandidate bool
	)

	for _, e := range targetEntries {
		name := e.Header.Name
		if name == PayloadPath {
			continue // never copy a pre-existing payload entry through
		}
		if !isCandidate(name) {
			passthrough = append(passthrough, e)
			continue
		}
		sawAnyCandidate = true

		isDex := dexCandidateRE.MatchString(name)
		var retain bool
		if isDex {
			retain = shouldRetainDex(e.Data, cfg.KeepClasses, cfg.KeepPrefixes)
		} else {
			retain = shouldRetainLib(name, cfg.KeepLibs)
		}

		if retain {
			if isDex {
				retainedDex = append(retainedDex, e)
			} else {
				retainedLibs = append(retainedLibs, e)
			}
			rpt.Add(name, int64(len(e.Data)), false)
			continue
		}

		ciphertext, nonce, err := aead.Encrypt(cfg.AESKey, e.Data)
		if err != nil {
			return nil, fmt.Errorf("packer: encrypt %s: %w", name, err)
		}
		blobEntries = append(blobEntries, format.Entry{Name: name, Ciphertext: ciphertext, Nonce: nonce})
		rpt.Add(name, int64(len(e.Data)), true)
	}

	retainedDex = collectBootstrapDex(retainedDex)

	if !sawAnyCandidate {
		return nil, &ConfigError{Reason: "target archive contains no classes*.dex or lib/<abi>/*.so candidates"}
	}

	blob, err := format.Build(blobEntries)
	if err != nil {
		return nil, fmt.Errorf("packer: build payload blob: %w", err)
	}
	digest := sha256.Sum256(blob)
	rpt.SetPayloadDigest(hex.EncodeToString(digest[:]))

	if err := writeOutput(cfg, passthrough, retainedDex, retainedLibs, bootstrapDex, bootstrapLibs,
		manifestOverride, resourcesOverride, blob); err != nil {
		return nil, err
	}

	return rpt, nil
}

// readOverride reads an already-prepared manifest or resource-table file
// whole: --manifest/--resources name a plain file of patched bytes to
// substitute verbatim, not an archive.
func readOverride(path string) ([]byte, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("packer: read override %s: %w", path, err)
	}
	return data, nil
}

// collectBootstrapDex returns the classes*.dex entries of entries in
// ascending section-index order (1, 2, 3, ...). Pack uses it for the
// bootstrap archive's sections and for the retained target sections.
func collectBootstrapDex(entries []archive.Entry) []archive.Entry {
	type indexed struct {
		idx int
		e   archive.Entry
	}
	var found []indexed
	for _, e := range entries {
		if m := dexCandidateRE.FindStringSubmatch(e.Header.Name); m != nil {
			idx := 1
			if m[1] != "" {
				fmt.Sscanf(m[1], "%d", &idx)
			}
			found = append(found, indexed{idx: idx, e: e})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].idx < found[j].idx })
	out := make([]archive.Entry, len(found))
	for i, f := range found {
		out[i] = f.e
	}
	return out
}

// collectBootstrapLibs reads libshell.so from each ABI subdirectory of dir,
// returning a map of ABI name to its shared-library bytes.
func collectBootstrapLibs(dir string) (map[string][]byte, error) {
	abis, err := listABIDirs(dir)
	if err != nil {
		return nil, fmt.Errorf("packer: list bootstrap libs %s: %w", dir, err)
	}
	out := make(map[string][]byte, len(abis))
	for _, abi := range abis {
		data, err := readFile(path.Join(dir, abi, libshellName))
		if err != nil {
			return nil, fmt.Errorf("packer: read bootstrap lib for abi %s: %w", abi, err)
		}
		out[abi] = data
	}
	return out, nil
}

// classSectionName renders the archive-relative name for executable
// section index i: 1 -> classes.dex, k>1 -> classes<k>.dex.
func classSectionName(i int) string {
	if i == 1 {
		return "classes.dex"
	}
	return fmt.Sprintf("classes%d.dex", i)
}

const libshellName = "libshell.so"
