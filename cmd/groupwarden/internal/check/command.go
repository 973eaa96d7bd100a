package check

import (
	"github.com/spf13/cobra"
)

func NewCheckCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test the classifier without connecting to Telegram",
		Args:  cobra.NoArgs,
		Example: `  groupwarden check
  groupwarden check --interactive`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return checkCmd(interactive)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Classify messages typed at a prompt")

	return cmd
}
