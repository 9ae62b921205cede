package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sdejongh/robinhood/pkg/transfer"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var short bool
	var rclonePath string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version information including build date, commit hash, Go version and the installed rclone.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, Version)
				return
			}

			fmt.Fprintf(out, "robinhood %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)

			v, err := transfer.NewRclone(transfer.RcloneOptions{Binary: rclonePath}).CheckVersion(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "  rclone:     unavailable (%v)\n", err)
				return
			}
			fmt.Fprintf(out, "  rclone:     v%s\n", v)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")
	cmd.Flags().StringVar(&rclonePath, "rclone", "rclone", "rclone binary to check")

	return cmd
}
