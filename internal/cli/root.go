package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the rosterctl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rosterctl",
		Short: "rosterctl administers a rosterd deployment",
		Long:  "Offline administration for the rosterd student roster: schema migration, CSV import, cache control and credentials.",
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to the configuration directory")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))

	return cmd
}
