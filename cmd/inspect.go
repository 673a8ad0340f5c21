package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/kapp-shell/kappshell/archive"
	"github.com/kapp-shell/kappshell/format"
	"github.com/kapp-shell/kappshell/packer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the entries recorded in a hardened archive's payload blob without decrypting them",
	Run: func(cmd *cobra.Command, args []string) {
		if err := viper.Unmarshal(c); err != nil {
			log.Fatalf("inspect: decode configuration: %v", err)
		}

		if err := Inspect(c.Target, os.Stdout); err != nil {
			log.Fatalf("inspect: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("target", "", "path to the hardened archive to inspect (required)")
	viper.BindPFlags(inspectCmd.Flags())
}

// Inspect reads the payload blob out of the archive at targetPath and
// writes a name/ciphertext-size table to w. It never touches the AEAD key,
// since the metadata descriptor alone carries every entry's name and
// ciphertext length.
func Inspect(targetPath string, w io.Writer) error {
	if targetPath == "" {
		return fmt.Errorf("inspect: --target is required")
	}

	blob, err := archive.ReadEntry(targetPath, packer.PayloadPath)
	if err != nil {
		return fmt.Errorf("inspect: read payload entry: %w", err)
	}

	entries, err := format.Parse(blob)
	if err != nil {
		return fmt.Errorf("inspect: parse payload: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCIPHERTEXT BYTES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\n", e.Name, len(e.Ciphertext))
	}
	return tw.Flush()
}
