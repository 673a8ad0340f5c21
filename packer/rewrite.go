package packer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kapp-shell/kappshell/archive"
)

// writeOutput streams the passthrough entries (with manifest/resources
// substitution), then appends the bootstrap dex sections, the retained
// original dex sections renumbered to follow them, the retained native
// libraries under their original lib/<abi>/<name>.so path, the bootstrap
// native libraries, and finally the payload blob. Every appended entry is
// written uncompressed; passthrough entries, substituted ones included, keep
// the source entry's compression method.
func writeOutput(
	cfg Config,
	passthrough, retainedDex, retainedLibs, bootstrapDex []archive.Entry,
	bootstrapLibs map[string][]byte,
	manifestOverride, resourcesOverride []byte,
	blob []byte,
) error {
	out, err := os.Create(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("packer: create output %s: %w", cfg.OutputPath, err)
	}
	defer out.Close()

	w := archive.NewWriter(out)

	for _, e := range passthrough {
		data := e.Data
		switch e.Header.Name {
		case manifestEntryName:
			if manifestOverride != nil {
				data = manifestOverride
			}
		case resourcesEntryName:
			if resourcesOverride != nil {
				data = resourcesOverride
			}
		}
		if err := w.CopyEntry(e.Header, data); err != nil {
			return fmt.Errorf("packer: copy passthrough entry %s: %w", e.Header.Name, err)
		}
	}

	idx := 1
	for _, e := range bootstrapDex {
		if err := w.WriteStored(classSectionName(idx), e.Data); err != nil {
			return fmt.Errorf("packer: write bootstrap section %d: %w", idx, err)
		}
		idx++
	}
	for _, e := range retainedDex {
		if err := w.WriteStored(classSectionName(idx), e.Data); err != nil {
			return fmt.Errorf("packer: write retained section %d: %w", idx, err)
		}
		idx++
	}
	for _, e := range retainedLibs {
		if err := w.WriteStored(e.Header.Name, e.Data); err != nil {
			return fmt.Errorf("packer: write retained library %s: %w", e.Header.Name, err)
		}
	}

	abis := make([]string, 0, len(bootstrapLibs))
	for abi := range bootstrapLibs {
		abis = append(abis, abi)
	}
	sort.Strings(abis)
	for _, abi := range abis {
		name := fmt.Sprintf("lib/%s/%s", abi, libshellName)
		if err := w.WriteStored(name, bootstrapLibs[abi]); err != nil {
			return fmt.Errorf("packer: write bootstrap lib %s: %w", name, err)
		}
	}

	if err := w.WriteStored(PayloadPath, blob); err != nil {
		return fmt.Errorf("packer: write payload blob: %w", err)
	}

	return w.Close()
}

// manifestEntryName and resourcesEntryName name the archive entries the
// packer substitutes when an override is supplied. These match the
// conventional Android archive layout (AndroidManifest.xml at the archive
// root, resources.arsc alongside it); the packer never parses either, it
// only swaps already-patched bytes in place; parsing either format is out
// of scope.
const (
	manifestEntryName  = "AndroidManifest.xml"
	resourcesEntryName = "resources.arsc"
)

// listABIDirs returns the immediate subdirectory names of dir, each
// expected to be one supported ABI (arm64-v8a, armeabi-v7a, x86, x86_64).
func listABIDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var abis []string
	for _, e := range entries {
		if e.IsDir() {
			abis = append(abis, e.Name())
		}
	}
	return abis, nil
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(path))
}
