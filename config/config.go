// Package config defines the Conf struct used by the cmd package to bind
// cobra flags and viper configuration values into a single typed structure.
package config

// Conf holds the configuration values populated by viper from cobra flags,
// environment variables, or a config file.
//
// mapstructure tags are required wherever the lowercased Go field name does
// not match the cobra flag name that viper binds. Without them,
// viper.Unmarshal silently leaves those fields at their zero value.
type Conf struct {
	// Target is the path to the application archive being hardened
	// (--target).
	Target string `mapstructure:"target"`
	// Output is the path the hardened archive is written to (--output).
	Output string `mapstructure:"output"`
	// Bootstrap is the path to the archive carrying the bootstrap executable
	// sections (--bootstrap).
	Bootstrap string `mapstructure:"bootstrap"`
	// BootstrapLibs is the directory containing one subdirectory per ABI,
	// each holding the bootstrap shared library (--bootstrap-libs).
	BootstrapLibs string `mapstructure:"bootstrap-libs"`
	// Manifest optionally overrides the archive's manifest entry
	// (--manifest). Empty means copy the target's manifest unchanged.
	Manifest string `mapstructure:"manifest"`
	// Resources optionally overrides the archive's resource-table entry
	// (--resources). Empty means copy the target's resource table unchanged.
	Resources string `mapstructure:"resources"`

	// KeepClasses is a repeatable list of fully-qualified class names or
	// descriptors retained in plaintext (--keep-class).
	KeepClasses []string `mapstructure:"keep-class"`
	// KeepPrefixes is a repeatable list of dotted package prefixes retained
	// in plaintext (--keep-prefix).
	KeepPrefixes []string `mapstructure:"keep-prefix"`
	// KeepLibs is a repeatable list of native-library basenames retained in
	// plaintext (--keep-lib).
	KeepLibs []string `mapstructure:"keep-lib"`

	// BuildID stamps the report produced alongside the hardened archive
	// (--build-id). Random (uuid.NewString()) if omitted.
	BuildID string `mapstructure:"build-id"`
	// ReportPath is where the JSON build report is written (--report).
	// Empty skips report generation.
	ReportPath string `mapstructure:"report"`
	// GraphPath is where the SVG bar chart is written (--graph). Empty
	// skips graph generation.
	GraphPath string `mapstructure:"graph"`

	// Keystore is the path to the JKS or PKCS12 signing keystore used only
	// to derive the expected certificate digest (--keystore).
	Keystore string `mapstructure:"keystore"`
	// KeystorePass is the JKS/PKCS12 *store* password — the password that
	// unlocks the keystore container itself. Leave empty to try the
	// conventional "changeit" default.
	KeystorePass string `mapstructure:"keystorepass"`
	// KeyEntryPass is the *key entry* password — the password that unlocks
	// the specific certificate entry inside a JKS keystore. Unused for
	// PKCS12, which ties both passwords together.
	KeyEntryPass string `mapstructure:"keyentrypass"`
	// KeystoreAlias selects a specific JKS entry. Empty selects the first
	// certificate-bearing entry found.
	KeystoreAlias string `mapstructure:"keystorealias"`

	// AESKeyHex is the hex-encoded 32-byte AEAD key injected into both the
	// packer and the loader for this build (--aes-key). Random if omitted.
	AESKeyHex string `mapstructure:"aes-key"`
	// XORKeyHex is the hex-encoded 32-byte string-obfuscation key
	// (--xor-key). Random if omitted.
	XORKeyHex string `mapstructure:"xor-key"`

	// ExpectedPayloadDigestHex is the hex-encoded expected SHA-256 of the
	// packed payload blob, injected into the loader (--expected-payload-digest).
	// All-zero (or empty, which is normalized to all-zero) disables the
	// check — development mode.
	ExpectedPayloadDigestHex string `mapstructure:"expected-payload-digest"`
	// ExpectedCertDigestHex is the hex-encoded expected SHA-256 of the
	// signing certificate's DER bytes, injected into the loader
	// (--expected-cert-digest). All-zero disables the check.
	ExpectedCertDigestHex string `mapstructure:"expected-cert-digest"`
	// StrictCertCheck makes a certificate-digest mismatch fatal at load time
	// instead of merely logged (--strict-cert-check). Default false.
	StrictCertCheck bool `mapstructure:"strict-cert-check"`

	// LogTag is the tag the loader attaches to every log line
	// (--log-tag). It is written as plain text into the buildconfig.Loader
	// artifact, so a library that embeds that artifact carries it
	// unobfuscated; only obfuscate's default tag is XOR-encoded.
	LogTag string `mapstructure:"log-tag"`

	// LoaderConfigPath is where a buildconfig.Loader JSON artifact is
	// written after a successful pack (--loader-config). Empty skips
	// writing it. A release build's codegen step copies the emitted file
	// to loader/jni/buildconfig.json before compiling the shared library,
	// so AESKeyHex, the digest checks, and LogTag actually reach the
	// device-side loader instead of only the CLI's flags.
	LoaderConfigPath string `mapstructure:"loader-config"`
}
