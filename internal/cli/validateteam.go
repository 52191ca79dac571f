package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nolanhq/nolan/internal/team"
)

// validateTeamCmd checks a team config file without loading it into a
// workflow. Intended for CI and for editing configs by hand.
var validateTeamCmd = &cobra.Command{
	Use:   "validate-team <config-file>",
	Short: "Validate a team configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := team.Load(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
			// Error already printed; a bare error sets the exit code.
			cmd.SilenceErrors = true
			return err
		}
		fmt.Printf("%s: OK\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateTeamCmd)
}
