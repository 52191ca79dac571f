package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nolanhq/nolan/internal/nolanenv"
	"github.com/nolanhq/nolan/internal/status"
	"github.com/nolanhq/nolan/internal/team"
)

// statusCmd reports project workflow state. With no arguments it walks the
// projects root; with a path it reports that single project.
var statusCmd = &cobra.Command{
	Use:   "status [project-path]",
	Short: "Show project workflow status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(os.Stderr, "[status] ", 0)
		env := nolanenv.New(viper.GetViper(), logger)
		nolanRoot, _ := env.NolanRoot()
		teams := team.NewCache(0)

		report := func(projectPath string) {
			t, err := teams.LoadForProject(projectPath, nolanRoot)
			if err != nil {
				logger.Printf("%s: %v", filepath.Base(projectPath), err)
				t = nil
			}
			rep, err := status.Build(projectPath, t)
			if err != nil {
				logger.Printf("%s: %v", filepath.Base(projectPath), err)
				return
			}
			fmt.Print(rep.String())
		}

		if len(args) == 1 {
			report(args[0])
			return nil
		}

		projectsRoot, err := env.ProjectsRoot()
		if err != nil {
			return err
		}
		entries, err := os.ReadDir(projectsRoot)
		if err != nil {
			return fmt.Errorf("reading projects directory: %w", err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for i, name := range names {
			if i > 0 {
				fmt.Println()
			}
			report(filepath.Join(projectsRoot, name))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
