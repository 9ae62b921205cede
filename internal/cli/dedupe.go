package cli

import (
	"github.com/spf13/cobra"

	"github.com/sdejongh/robinhood/pkg/models"
)

// NewDedupeCommand creates the dedupe command
func NewDedupeCommand(global *GlobalFlags) *cobra.Command {
	f := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Report files with identical content",
		Long: `Find files holding the same content within one tree, or across a source
and destination. Groups are keyed by checksum, so checksums are listed by
default (md5). Nothing is deleted: the report names the newest copy of each
group as the one to keep.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Groups need checksums even when the config lists none
			if !cmd.Flags().Changed("checksum") {
				cmd.Flags().Set("checksum", f.Checksum)
			}
			return runSync(cmd, global, f, models.ModeDedupe)
		},
	}

	addRootFlags(cmd, f)
	cmd.Flags().StringSliceVar(&f.Exclude, "exclude", nil, "glob patterns to exclude")
	cmd.Flags().StringSliceVar(&f.Include, "include", nil, "glob patterns to include, everything else is excluded")
	cmd.Flags().BoolVar(&f.ExcludeHidden, "exclude-hidden", false, "exclude dot files and directories")
	cmd.Flags().BoolVar(&f.CaseInsensitive, "case-insensitive", false, "match paths case-insensitively")
	cmd.Flags().StringVar(&f.Checksum, "checksum", "md5", "checksum used to group files: md5, blake3")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "output format: human, json")
	cmd.Flags().StringVar(&f.Engine, "engine", "", "transfer engine: rclone, direct")
	cmd.Flags().StringVar(&f.RunLog, "run-log", "", "write a JSON log of the run to file")
	return cmd
}
