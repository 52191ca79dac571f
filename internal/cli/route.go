package cli

import (
	"encoding/json"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nolanhq/nolan/internal/nolanenv"
	"github.com/nolanhq/nolan/internal/router"
	"github.com/nolanhq/nolan/internal/team"
)

// routeCmd answers "where does the workflow go next" for scripts and
// humans. The result is always JSON on stdout; an escalation additionally
// exits 1 so shell callers can branch on it.
var routeCmd = &cobra.Command{
	Use:   "route <project-path> <phase> [decision]",
	Short: "Compute the workflow transition out of a phase",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.New(os.Stderr, "[workflow-router] ", 0)
		env := nolanenv.New(viper.GetViper(), logger)

		decision := router.Approved
		if len(args) == 3 {
			decision = router.Decision(args[2])
		}

		var res router.Result
		nolanRoot, err := env.NolanRoot()
		if err != nil {
			res = router.Result{Action: router.Escalate, Reason: err.Error()}
		} else if t, terr := team.LoadForProject(args[0], nolanRoot); terr != nil {
			res = router.Result{Action: router.Escalate, Reason: terr.Error()}
		} else {
			res = router.Route(t, args[1], decision)
		}

		if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
			logger.Printf("failed to write result: %v", err)
		}
		if res.Action == router.Escalate {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
}
