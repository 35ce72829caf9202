// Command binspec-dump is a diagnostic CLI that loads a YAML format
// description and a binary file, parses the file under that format, prints
// the resulting instance tree, then re-serializes it and reports whether
// the round trip reproduced the input byte for byte.
package main

import (
	"fmt"
	"os"

	"github.com/binspecgo/binspec/cmd/binspec-dump/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
