package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/allocation"
	"github.com/jobtrack/jobtrack/pkg/auth"
	"github.com/jobtrack/jobtrack/pkg/config"
	"github.com/jobtrack/jobtrack/pkg/report"
	"github.com/jobtrack/jobtrack/pkg/store/sqlstore"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env holds what every database command needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlstore.Store
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logging.Build()
	if err != nil {
		return nil, err
	}
	db, err := sqlstore.NewStore(&cfg.Database)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}

func (e *env) close() {
	_ = e.db.Close()
	_ = e.logger.Sync()
}

func (e *env) service() *allocation.Service {
	return allocation.NewService(e.db, e.logger, allocation.WithLocation(e.cfg.Server.TimeLocation()))
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jobtrackctl",
		Short:         "Administrative commands for the job order tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(migrateCmd(), reconcileCmd(), tokenCmd(), hashPasswordCmd(), exportCmd())
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.db.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var (
		fix        bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare item available quantities against outstanding allocations",
		Long: `Recomputes each item's available quantity as delivered minus damaged,
lost and outstanding allocations, and reports items whose stored value differs.

Examples:
  jobtrackctl reconcile          # report drift only
  jobtrackctl reconcile --fix    # overwrite drifted items with the expected value
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			drifts, err := e.service().Reconcile(ctx, fix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return json.NewEncoder(out).Encode(drifts)
			}
			if len(drifts) == 0 {
				fmt.Fprintln(out, "no drift found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ITEM\tNAME\tSTORED\tEXPECTED")
			for _, d := range drifts {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", d.ItemID, d.Name, d.Stored, d.Expected)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if fix {
				fmt.Fprintf(out, "fixed %d item(s)\n", len(drifts))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Overwrite drifted available quantities")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output drift as JSON")
	return cmd
}

func tokenCmd() *cobra.Command {
	var userID uint

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			user, err := e.db.GetUser(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("load user %d: %w", userID, err)
			}

			tokens := auth.NewTokenManager([]byte(e.cfg.Auth.JWTSecret), e.cfg.Auth.TokenTTL, e.cfg.Auth.Issuer)
			token, err := tokens.GenerateUserToken(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user-id", 0, "User to issue the token for")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash stored in user.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <jo-number>",
		Short: "Write a job order's days, allocations and activity to an XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			detail, err := e.service().GetProjectDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output == "" {
				output = report.Filename(detail.Project.JONumber)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := report.Write(f, detail); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default project-<jo>.xlsx)")
	return cmd
}
