package root

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zerotouch/stagecraft/cmd/stagecraft/cachecmd"
	"github.com/zerotouch/stagecraft/cmd/stagecraft/run"
	"github.com/zerotouch/stagecraft/cmd/stagecraft/validate"
	"github.com/zerotouch/stagecraft/cmd/stagecraft/version"
)

// NewRootCmd creates the root command for stagecraft.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stagecraft",
		Short: "CLI: sequential bootstrap stage executor for the zerotouch platform",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// `stagecraft <stage-file>` is the original executor contract;
			// route it to run. Show help when no argument is provided.
			if len(args) == 1 {
				return run.RunStageFile(cmd.Context(), args[0], run.DefaultOptions())
			}
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Subcommands
	cmd.AddCommand(run.Cmd)
	cmd.AddCommand(validate.Cmd)
	cmd.AddCommand(cachecmd.Cmd)
	cmd.AddCommand(version.VersionCmd)

	return cmd
}

// Execute runs the root command with provided args.
func Execute(args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	return cmd.Execute()
}
