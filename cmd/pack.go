package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/kapp-shell/kappshell/aead"
	"github.com/kapp-shell/kappshell/buildconfig"
	"github.com/kapp-shell/kappshell/keystore"
	"github.com/kapp-shell/kappshell/obfuscate"
	"github.com/kapp-shell/kappshell/packer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// packCmd represents the pack command
var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Harden a target application archive by encrypting its executable code into a payload blob",
	Run: func(cmd *cobra.Command, args []string) {
		if err := viper.Unmarshal(c); err != nil {
			log.Fatalf("pack: decode configuration: %v", err)
		}

		if err := Pack(); err != nil {
			log.Fatalf("pack: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(packCmd)

	packCmd.Flags().String("target", "", "path to the target application archive (required)")
	packCmd.Flags().String("output", "", "path the hardened archive is written to (required)")
	packCmd.Flags().String("bootstrap", "", "path to the archive carrying the bootstrap executable sections (required)")
	packCmd.Flags().String("bootstrap-libs", "", "directory with one subdirectory per ABI, each holding the bootstrap shared library (required)")
	packCmd.Flags().String("manifest", "", "optional override for the archive's manifest entry")
	packCmd.Flags().String("resources", "", "optional override for the archive's resource-table entry")

	packCmd.Flags().StringSlice("keep-class", nil, "fully-qualified class name or descriptor to retain in plaintext (repeatable)")
	packCmd.Flags().StringSlice("keep-prefix", nil, "dotted package prefix to retain in plaintext (repeatable)")
	packCmd.Flags().StringSlice("keep-lib", nil, "native-library basename to retain in plaintext (repeatable)")

	packCmd.Flags().String("build-id", "", "identifier stamped on the build report. Random if omitted")
	packCmd.Flags().String("report", "", "path the JSON build report is written to. Empty skips report generation")
	packCmd.Flags().String("graph", "", "path the SVG bar chart is written to. Empty skips graph generation")

	packCmd.Flags().String("keystore", "", "path to the JKS or PKCS12 signing keystore, used to derive the expected certificate digest")
	packCmd.Flags().String("keystorepass", "", "keystore container password. Defaults to \"changeit\" when unset")
	packCmd.Flags().String("keyentrypass", "", "JKS key-entry password. Unused for PKCS12")
	packCmd.Flags().String("keystorealias", "", "JKS alias to use. Empty selects the first certificate-bearing entry")

	packCmd.Flags().String("aes-key", "", "hex-encoded 32-byte AEAD key shared between packer and loader. Random if omitted")
	packCmd.Flags().String("xor-key", "", "hex-encoded 32-byte string-obfuscation key. Random if omitted")

	packCmd.Flags().String("expected-payload-digest", "", "hex-encoded expected SHA-256 of the packed payload blob, carried into --loader-config for the loader to enforce")
	packCmd.Flags().String("expected-cert-digest", "", "hex-encoded expected SHA-256 of the signing certificate, carried into --loader-config for the loader to enforce. Defaults to the --keystore certificate's digest when --keystore is set and this flag is empty")
	packCmd.Flags().Bool("strict-cert-check", false, "carried into --loader-config: whether the loader should treat a certificate digest mismatch as fatal")

	packCmd.Flags().String("log-tag", obfuscate.Decode(obfuscate.IDLogTag), "tag the built loader attaches to every log line")

	packCmd.Flags().String("loader-config", "", "path a buildconfig.Loader JSON artifact is written to after a successful pack. Empty skips it")

	viper.BindPFlags(packCmd.Flags())
}

// Pack translates the bound configuration into a packer.Config, runs the
// pack operation, and persists the resulting report where requested.
func Pack() error {
	if c.Target == "" || c.Output == "" || c.Bootstrap == "" || c.BootstrapLibs == "" {
		return fmt.Errorf("pack: --target, --output, --bootstrap, and --bootstrap-libs are all required")
	}

	aesKey, err := resolveKey(c.AESKeyHex, aead.KeySize, "aes-key")
	if err != nil {
		return err
	}
	var aesKeyArr [aead.KeySize]byte
	copy(aesKeyArr[:], aesKey)

	xorKey, err := resolveKey(c.XORKeyHex, obfuscate.KeySize, "xor-key")
	if err != nil {
		return err
	}

	buildID := c.BuildID
	if buildID == "" {
		buildID = uuid.NewString()
	}

	certDigestHex := c.ExpectedCertDigestHex
	if c.Keystore != "" {
		storePass := c.KeystorePass
		if storePass == "" {
			storePass = keystore.DefaultStorePassword
		}
		cert, err := keystore.LoadSigningCertificate(c.Keystore, storePass, c.KeyEntryPass, c.KeystoreAlias)
		if err != nil {
			return fmt.Errorf("pack: load signing certificate: %w", err)
		}
		digest := keystore.Digest(cert)
		fmt.Fprintf(os.Stderr, "pack: signing certificate digest: %s\n", hex.EncodeToString(digest[:]))
		if certDigestHex == "" {
			certDigestHex = hex.EncodeToString(digest[:])
		}
	}

	cfg := packer.Config{
		TargetPath:    c.Target,
		OutputPath:    c.Output,
		BootstrapPath: c.Bootstrap,
		BootstrapLibs: c.BootstrapLibs,
		ManifestPath:  c.Manifest,
		ResourcesPath: c.Resources,
		KeepClasses:   c.KeepClasses,
		KeepPrefixes:  c.KeepPrefixes,
		KeepLibs:      c.KeepLibs,
		AESKey:        aesKeyArr,
		BuildID:       buildID,
	}

	rpt, err := packer.Pack(cfg)
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	if c.LoaderConfigPath != "" {
		loaderCfg := buildconfig.Loader{
			AESKeyHex:                hex.EncodeToString(aesKey),
			XORKeyHex:                hex.EncodeToString(xorKey),
			ExpectedPayloadDigestHex: c.ExpectedPayloadDigestHex,
			ExpectedCertDigestHex:    certDigestHex,
			StrictCertCheck:          c.StrictCertCheck,
			LogTag:                   c.LogTag,
		}
		if err := loaderCfg.Write(c.LoaderConfigPath); err != nil {
			return fmt.Errorf("pack: write loader config: %w", err)
		}
	}

	if c.ReportPath != "" {
		if err := rpt.Save(c.ReportPath); err != nil {
			return fmt.Errorf("pack: save report: %w", err)
		}
	}
	if c.GraphPath != "" {
		f, err := os.Create(c.GraphPath)
		if err != nil {
			return fmt.Errorf("pack: create graph file %s: %w", c.GraphPath, err)
		}
		defer f.Close()
		if err := rpt.Graph(f); err != nil {
			return fmt.Errorf("pack: render graph: %w", err)
		}
	}

	return nil
}

// resolveKey decodes a hex-encoded key of exactly size bytes, or generates a
// fresh random one when hexKey is empty.
func resolveKey(hexKey string, size int, flagName string) ([]byte, error) {
	if hexKey == "" {
		key := make([]byte, size)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("pack: generate random --%s: %w", flagName, err)
		}
		return key, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("pack: decode --%s: %w", flagName, err)
	}
	if len(key) != size {
		return nil, fmt.Errorf("pack: --%s must decode to %d bytes, got %d", flagName, size, len(key))
	}
	return key, nil
}
