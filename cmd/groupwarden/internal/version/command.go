package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groupwarden/groupwarden/cmd/groupwarden/internal"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s groupwarden %s\n", internal.Logo, internal.FormatVersion())
			build, goVer := internal.FormatBuildInfo()
			if build != "" {
				fmt.Printf("  build time: %s\n", build)
			}
			fmt.Printf("  go version: %s\n", goVer)
		},
	}
}
