package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nolanhq/nolan/internal/version"
)

var versionLong bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if versionLong {
			fmt.Println(version.Full())
		} else {
			fmt.Println(version.Short())
		}
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&versionLong, "long", "l", false, "include commit and build date")
	rootCmd.AddCommand(versionCmd)
}
