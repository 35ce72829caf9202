package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "binspec-dump",
	Short: "Parse and round-trip a binary file against a YAML format description",
	Long: `binspec-dump drives the binspec engine from the command line: it loads a
Kaitai-Struct-flavored YAML format description, parses an input file under
it, prints the resulting field tree, and re-serializes the parsed value to
check that the write loop reproduces the original bytes.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
