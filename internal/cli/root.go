// Package cli wires the nolan commands. Every command resolves its
// environment through viper so tests and callers can override any input.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nolanhq/nolan/internal/nolanenv"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "nolan",
	Short: "Multi-agent workflow coordination",
	Long: `nolan coordinates handoffs between terminal-based agents working
through a phased workflow. State lives on the filesystem; nolan commands
are invoked by hooks and operators, do their one job, and exit.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .nolan.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".nolan")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}
	nolanenv.BindEnv(viper.GetViper())
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
