package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charlesng35/rosterd/internal/auditctx"
	"github.com/charlesng35/rosterd/internal/jobs"
)

// cliActor attributes audit records written by rosterctl.
const cliActor = "rosterctl"

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply the database schema",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "import <file.csv>",
		Short:        "Import students from a CSV file",
		Long:         "Import students from a CSV file with surname, name, faculty, course and grade columns (English or Russian headers).",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			inputs, malformed, err := jobs.ParseStudentCSV(data)
			if err != nil {
				return err
			}

			env, err := openEnvironment(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			students, err := env.students()
			if err != nil {
				return err
			}

			ctx := auditctx.WithActor(cmd.Context(), auditctx.Actor{Username: cliActor})
			result, err := students.Import(ctx, inputs)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d students, skipped %d rows\n", result.Created, result.Skipped+malformed)
			return err
		},
	}
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the query cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "clear",
		Short:        "Drop every cached query result",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			students, err := env.students()
			if err != nil {
				return err
			}

			ctx := auditctx.WithActor(cmd.Context(), auditctx.Actor{Username: cliActor})
			if !students.ClearCache(ctx) {
				return fmt.Errorf("cache backend %q did not clear", env.cfg.Cache.BackendName())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})

	return cmd
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API credentials",
	}

	var password string
	add := &cobra.Command{
		Use:          "add <username>",
		Short:        "Register a credential",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(password) == "" {
				return fmt.Errorf("--password is required")
			}

			env, err := openEnvironment(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			creds, err := env.credentials()
			if err != nil {
				return err
			}

			user, err := creds.Register(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&password, "password", "p", "", "password for the new credential")
	cmd.AddCommand(add)

	disable := &cobra.Command{
		Use:          "disable <username>",
		Short:        "Deactivate a credential; its tokens stop authorizing",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			creds, err := env.credentials()
			if err != nil {
				return err
			}
			if err := creds.SetActive(cmd.Context(), args[0], false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "disabled %s\n", args[0])
			return nil
		},
	}
	cmd.AddCommand(disable)

	return cmd
}
