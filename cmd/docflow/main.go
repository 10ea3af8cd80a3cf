package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/config"
	"github.com/smallbiznis/docflow/internal/migration"
	"github.com/smallbiznis/docflow/internal/observability"
	"github.com/smallbiznis/docflow/internal/server"
	"github.com/smallbiznis/docflow/pkg/db"
	"go.uber.org/fx"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "docflow",
		Short:   "Quotation to contract document service",
		Version: version,

		SilenceErrors: true,
		SilenceUsage:  true,
	}

	var nodeID int64
	root.PersistentFlags().Int64Var(&nodeID, "node-id", 1, "Snowflake node id (0-1023)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				fx.Provide(snowflakeNode(nodeID)),
				db.Module,
				clock.Module,
				migration.Module,
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	var timeout time.Duration
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
				fx.NopLogger,
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.Stop(ctx)
		},
	}
	migrateCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up when migrations take longer")

	root.AddCommand(serveCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func snowflakeNode(id int64) func() (*snowflake.Node, error) {
	return func() (*snowflake.Node, error) {
		return snowflake.NewNode(id)
	}
}
