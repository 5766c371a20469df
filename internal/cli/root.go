package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kevinxiao27/crdt-engine/util"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "dump"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "dump"}

// NewRootCommand creates the root command for crdtctl.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "crdtctl",
		Short: "Offline tooling for replicated arrays and objects",
		Long: `crdtctl works on the JSON files replicas exchange: operation batches
and snapshots. It compresses batches, garbage collects array snapshots,
prints restored state, and runs multi-replica YAML scenarios.`,
		SilenceUsage:  true,
		SilenceErrors: true, // Execute reports errors in the selected format
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|dump)")

	cmd.AddCommand(NewCompressCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd, opts
}

// Execute runs crdtctl with args and returns the process exit code. Errors
// that do not carry a code come from cobra's own argument and flag checks
// and are reported as command errors.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		err = WrapExitError(ExitCommandError, "usage", err)
	}
	f := opts.formatter(cmd)
	if !slices.Contains(ValidFormats, f.Format) {
		f.Format = "text"
	}
	_ = f.Error(err)
	return GetExitCode(err)
}

// logger returns a debug logger on stderr in verbose mode.
func (o *RootOptions) logger(cmd *cobra.Command) util.Logger {
	if !o.Verbose {
		return util.NopLogger
	}
	return util.NewLoggerTo(cmd.ErrOrStderr(), slog.LevelDebug)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
