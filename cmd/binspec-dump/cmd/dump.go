package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/binspecgo/binspec/cursor"
	"github.com/binspecgo/binspec/descriptor"
	"github.com/binspecgo/binspec/engine"
	"github.com/binspecgo/binspec/yamlspec"
)

var (
	formatPath string
	inputPath  string
	bigEndian  bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Parse a file under a YAML format description and print it",
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&formatPath, "format", "", "path to the YAML format description (required)")
	dumpCmd.Flags().StringVar(&inputPath, "input", "", "path to the binary file to parse (required)")
	dumpCmd.Flags().BoolVar(&bigEndian, "big-endian", false, "read/write multi-byte primitives as big-endian (default little-endian)")
	_ = dumpCmd.MarkFlagRequired("format")
	_ = dumpCmd.MarkFlagRequired("input")
}

func runDump(cmd *cobra.Command, _ []string) error {
	formatBytes, err := os.ReadFile(formatPath)
	if err != nil {
		return fmt.Errorf("reading format %s: %w", formatPath, err)
	}
	input, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input %s: %w", inputPath, err)
	}

	t, err := yamlspec.Load(formatBytes)
	if err != nil {
		return fmt.Errorf("loading format: %w", err)
	}

	endian := cursor.LittleEndian
	if bigEndian {
		endian = cursor.BigEndian
	}

	inst, err := engine.Read(t, input, endian)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", inputPath, err)
	}

	out := cmd.OutOrStdout()
	printInstance(out, inst, 0)

	written, err := engine.Write(t, inst, endian)
	if err != nil {
		return fmt.Errorf("re-serializing: %w", err)
	}

	if bytes.Equal(written, input) {
		fmt.Fprintf(out, "\nround trip: ok (%d bytes)\n", len(written))
	} else {
		fmt.Fprintf(out, "\nround trip: MISMATCH (wrote %d bytes, read %d bytes)\n", len(written), len(input))
	}
	return nil
}

func printInstance(w io.Writer, inst *descriptor.Instance, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, name := range inst.Fields() {
		v, _ := inst.Get(name)
		printValue(w, indent, name, v, depth)
	}
}

func printValue(w io.Writer, indent, name string, v any, depth int) {
	switch val := v.(type) {
	case *descriptor.Instance:
		fmt.Fprintf(w, "%s%s:\n", indent, name)
		printInstance(w, val, depth+1)
	case []any:
		fmt.Fprintf(w, "%s%s: [%d]\n", indent, name, len(val))
		for i, elem := range val {
			printValue(w, indent+"  ", fmt.Sprintf("%d", i), elem, depth+1)
		}
	default:
		fmt.Fprintf(w, "%s%s: %v\n", indent, name, val)
	}
}
