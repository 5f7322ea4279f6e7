package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/amodomio/media-uploader/internal/version"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetInfo())
				return
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "media-uploader %s\n", version.GetInfo())
			if built := version.BuiltAt(); built != "" {
				fmt.Fprintf(out, "  Built:      %s\n", built)
			}
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version")

	return cmd
}
