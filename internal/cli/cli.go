package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/loft/internal/app"
	"github.com/Additional-Code/loft/internal/migration"
	"github.com/Additional-Code/loft/internal/seeder"
	"github.com/Additional-Code/loft/internal/service/account"
)

// NewRootCommand builds the root loft CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "loft",
		Short:        "Loft marketplace service toolkit",
		SilenceUsage: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newAdminCmd())
	root.AddCommand(newWorkerCmd())

	return root
}

// Execute runs the loft CLI until the command finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP and gRPC services",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Module)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				states, err := mig.Status(ctx)
				if err != nil {
					return err
				}
				printStatus(cmd, states)
				return nil
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func printStatus(cmd *cobra.Command, states []migration.Status) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tFILE\tAPPLIED AT")
	for _, st := range states {
		applied := "pending"
		if st.Applied {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", st.Version, st.Name, applied)
	}
	_ = w.Flush()
}

func newSeedCmd() *cobra.Command {
	defaults := seeder.DefaultOptions()
	opts := defaults

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the catalog and demo accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			options := fx.Options(app.Core, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), options, func(ctx context.Context) error {
				if err := seed.Run(ctx, opts); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", defaults.AdminEmail, "Email of the seeded administrator")
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", defaults.AdminPassword, "Password of the seeded administrator")
	cmd.Flags().StringVar(&opts.CustomerEmail, "customer-email", defaults.CustomerEmail, "Email of the seeded customer")
	cmd.Flags().StringVar(&opts.CustomerPassword, "customer-password", defaults.CustomerPassword, "Password of the seeded customer")
	return cmd
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var in account.AdminInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an active administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *account.Service
			options := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), options, func(ctx context.Context) error {
				admin, err := svc.CreateAdministrator(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "administrator %s created (%s)\n", admin.Email, admin.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "Display name")
	create.Flags().StringVar(&in.Email, "email", "", "Login email")
	create.Flags().StringVar(&in.Password, "password", "", "Initial password (at least 8 characters)")
	create.Flags().StringVar(&in.Role, "role", "admin", "Role: admin or super_admin")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Worker)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	})
	return cmd
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
