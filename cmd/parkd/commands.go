package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/parking-manager/internal/application"
	"github.com/example/parking-manager/internal/config"
)

func newRootCommand() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:           "parkd",
		Short:         "Vehicle parking management service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides PARKING_SQLITE_PATH)")

	root.AddCommand(
		serveCommand(&dbPath),
		migrateCommand(&dbPath),
		sweepCommand(&dbPath),
		createAdminCommand(&dbPath),
	)
	return root
}

func serveCommand(dbPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the availability feed and the account sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, cmd.OutOrStdout(), *dbPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if port > 0 {
				a.cfg.HTTPPort = port
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides PARKING_HTTP_PORT)")
	return cmd
}

func migrateCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), cmd.ErrOrStderr(), *dbPath, true)
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), cmd.ErrOrStderr(), *dbPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.storage.MigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s  %-40s  %-8s\n", "Version", "Details", "Status")
			for _, applied := range status.AppliedMigrations {
				fmt.Fprintf(out, "%-8s  %-40s  %-8s\n", applied.Version, applied.AppliedAt.Format("2006-01-02 15:04:05"), "Applied")
			}
			for _, pending := range status.PendingMigrations {
				fmt.Fprintf(out, "%-8s  %-40s  %-8s\n", pending.Version, pending.Description, "Pending")
			}
			return nil
		},
	})
	return cmd
}

func sweepCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Purge accounts whose deletion grace period has ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), cmd.ErrOrStderr(), *dbPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			purged, err := a.newServices(nil).accounts.SweepExpiredDeletions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d account(s)\n", purged)
			return nil
		},
	}
}

func createAdminCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create-admin",
		Short: "Create the administrator from PARKING_ADMIN_* unless an admin exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := config.LoadAdmin()
			if err != nil {
				return err
			}

			a, err := loadApp(cmd.Context(), cmd.ErrOrStderr(), *dbPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			return createAdmin(cmd.Context(), a, admin, cmd.OutOrStdout())
		},
	}
}

func createAdmin(ctx context.Context, a *app, admin config.AdminConfig, out io.Writer) error {
	created, err := a.newServices(nil).accounts.EnsureAdmin(ctx, application.EnsureAdminParams{
		FullName: admin.Name,
		Email:    admin.Email,
		Password: admin.Password,
	})
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "administrator %s created\n", admin.Email)
	} else {
		fmt.Fprintln(out, "an administrator already exists")
	}
	return nil
}
