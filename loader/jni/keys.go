//go:build android

package jni

import (
	_ "embed"
	"log"
	"os"

	"github.com/kapp-shell/kappshell/buildconfig"
	libloader "github.com/kapp-shell/kappshell/loader"
	"github.com/kapp-shell/kappshell/obfuscate"
)

// embeddedBuildConfig bakes buildconfig.json into the compiled shared
// library at compile time, so key and digest material never sits as a
// loose file next to the library on device. A release build's codegen
// step overwrites this file with the pack run's actual artifact before
// the library is compiled; the checked-in copy is an inert dev-mode
// placeholder (all-zero digests, empty key, checks disabled).
//
//go:embed buildconfig.json
var embeddedBuildConfig []byte

// keys and logTag are populated once at package init from
// embeddedBuildConfig. A decode failure falls back to a zero-value Keys
// (equivalent to the dev-mode placeholder: no digest checks, an all-zero
// AES key) rather than panicking, since a malformed embed must not crash
// every caller of this library before main ever runs.
var keys libloader.Keys
var logTag string

func init() {
	cfg, err := buildconfig.Decode(embeddedBuildConfig)
	if err != nil {
		log.New(os.Stderr, "", 0).Printf("jni: decode embedded buildconfig: %v", err)
		logTag = obfuscate.Decode(obfuscate.IDLogTag)
		return
	}

	k, err := cfg.Keys()
	if err != nil {
		log.New(os.Stderr, "", 0).Printf("jni: resolve embedded buildconfig keys: %v", err)
	} else {
		keys = k
	}
	logTag = cfg.ResolvedLogTag()
}
