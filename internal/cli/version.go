package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

type VersionInfo struct {
	Version string `json:"version"`
	Go      string `json:"go"`
}

func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crdtctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{Version: Version, Go: runtime.Version()}
			return rootOpts.formatter(cmd).Success(info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "crdtctl %s (%s)\n", info.Version, info.Go)
				return err
			})
		},
	}
}
