package cli

import (
	"encoding/json"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nolanhq/nolan/internal/nolanenv"
	"github.com/nolanhq/nolan/internal/notify"
	"github.com/nolanhq/nolan/internal/stopgate"
	"github.com/nolanhq/nolan/internal/team"
)

// stopGateCmd is invoked by the agent runtime's stop hook with a JSON
// payload on stdin. The verdict goes to stdout; diagnostics go to stderr.
// The exit code is always 0: the verdict, not the code, carries the
// decision, and a crashing gate must never trap an agent.
var stopGateCmd = &cobra.Command{
	Use:   "stop-gate",
	Short: "Decide whether the calling agent may stop",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.New(os.Stderr, "[validate-phase-complete] ", 0)
		env := nolanenv.New(viper.GetViper(), logger)

		ctrl := &stopgate.Controller{
			Env:      env,
			Teams:    team.NewCache(0),
			Notifier: notify.TmuxNotifier{},
			Desktop:  notify.SendDesktop,
			Logger:   logger,
		}
		if root, err := env.NolanRoot(); err == nil {
			ctrl.Assigner = stopgate.ScriptAssigner{Root: root}
		} else {
			ctrl.Assigner = stopgate.NullAssigner{}
		}

		verdict := ctrl.Run(os.Stdin)
		if err := json.NewEncoder(os.Stdout).Encode(verdict); err != nil {
			logger.Printf("failed to write verdict: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(stopGateCmd)
}
