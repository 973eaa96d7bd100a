package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groupwarden/groupwarden/cmd/groupwarden/internal"
	"github.com/groupwarden/groupwarden/cmd/groupwarden/internal/check"
	"github.com/groupwarden/groupwarden/cmd/groupwarden/internal/gateway"
	"github.com/groupwarden/groupwarden/cmd/groupwarden/internal/onboard"
	"github.com/groupwarden/groupwarden/cmd/groupwarden/internal/version"
)

func NewGroupwardenCommand() *cobra.Command {
	short := fmt.Sprintf("%s groupwarden - Telegram group moderation bot v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "groupwarden",
		Short:   short,
		Example: "groupwarden gateway",
	}

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		gateway.NewGatewayCommand(),
		check.NewCheckCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewGroupwardenCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
