package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kevinxiao27/crdt-engine/compress"
	"github.com/kevinxiao27/crdt-engine/crdt"
)

// NewGCCommand creates the gc command.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc <snapshot.json>",
		Short: "Drop tombstones from an array snapshot",
		Long: `Read an array snapshot and print it without removed elements.

Only collect once every replica has applied the removes: a replica that
later re-delivers the insert of a collected element brings it back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGC(rootOpts, args[0], cmd)
		},
	}
}

func runGC(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var snap crdt.ArraySnapshot[json.RawMessage]
	if err := readJSON(path, &snap); err != nil {
		return err
	}
	// reject snapshots no replica could restore
	if _, err := crdt.RestoreArray(snap, crdt.WithLogger(opts.logger(cmd))); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid snapshot %s", path), err)
	}

	out := compress.GCArraySnapshot(snap)
	dropped := len(snap.Elements) - len(out.Elements)
	f.VerboseLog("kept %d element(s), dropped %d tombstone(s)", len(out.Elements), dropped)

	return f.Success(out, func(w io.Writer) error {
		return writeIndented(w, out)
	})
}
