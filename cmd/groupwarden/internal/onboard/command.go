package onboard

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groupwarden/groupwarden/cmd/groupwarden/internal"
	"github.com/groupwarden/groupwarden/pkg/config"
)

func NewOnboardCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Write a starter config file",
		Args:  cobra.NoArgs,
		Example: `  groupwarden onboard
  groupwarden onboard --force`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return onboardCmd(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func onboardCmd(force bool) error {
	path := internal.GetConfigPath()

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}

	fmt.Printf("%s Config template written to %s\n", internal.Logo, path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set telegram.token (from @BotFather)")
	fmt.Println("  2. Set llm.api_key and adjust llm.provider/model")
	fmt.Println("  3. Add your user ID to moderation.admin_ids")
	fmt.Println("  4. Run: groupwarden gateway")
	return nil
}
