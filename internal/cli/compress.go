package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kevinxiao27/crdt-engine/compress"
	"github.com/kevinxiao27/crdt-engine/ol"
)

// CompressResult is the payload of the compress command.
type CompressResult struct {
	Stats      compress.Stats                  `json:"stats"`
	Operations []ol.Operation[json.RawMessage] `json:"operations"`
}

// NewCompressCommand creates the compress command.
func NewCompressCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compress <ops.json>",
		Short: "Compress an operation batch",
		Long: `Read a JSON array of operations and print the smallest batch with the
same effect. Elements inserted and removed inside the batch disappear,
updates and moves fold into their insert, and only the newest write per
key survives.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(rootOpts, args[0], cmd)
		},
	}
}

func runCompress(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var ops []ol.Operation[json.RawMessage]
	if err := readJSON(path, &ops); err != nil {
		return err
	}
	out, stats := compress.CompressWithStats(ops)
	f.VerboseLog("compressed %d operation(s) to %d, dropped %d", stats.In, stats.Out, stats.Dropped)

	return f.Success(CompressResult{Stats: stats, Operations: out}, func(w io.Writer) error {
		if err := writeIndented(w, out); err != nil {
			return err
		}
		_, err := fmt.Fprintf(f.errWriter(), "%d -> %d operations\n", stats.In, stats.Out)
		return err
	})
}
