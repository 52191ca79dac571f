package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nolanhq/nolan/internal/handoff"
	"github.com/nolanhq/nolan/internal/nolanenv"
)

// ackCmd sweeps the pending queue. Normally the note-taker's stop does
// this; the command exists for recovery when no note-taker is running.
var ackCmd = &cobra.Command{
	Use:   "ack",
	Short: "Acknowledge all pending handoffs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(os.Stderr, "[ack] ", 0)
		env := nolanenv.New(viper.GetViper(), logger)
		stateRoot, err := env.StateRoot()
		if err != nil {
			return err
		}
		acked, failed, err := handoff.NewQueue(stateRoot).AckAll()
		if err != nil {
			return err
		}
		fmt.Printf("acknowledged %d handoff(s), %d failed\n", acked, failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ackCmd)
}
