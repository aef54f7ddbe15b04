package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"steadydb/internal/datastore"
	"steadydb/internal/dummy"
	"steadydb/internal/logging"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the target table if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()

		logger, err := setupLogger(v, false)
		if err != nil {
			return err
		}
		defer logging.Sync()

		cfg := runConfig(v).Datastore
		if cfg.Driver == dummy.Driver {
			return fmt.Errorf("the %s driver has no schema", dummy.Driver)
		}
		cfg.PoolSize = 1

		db, err := datastore.Open(cmd.Context(), cfg, logger)
		if err != nil {
			logging.Error("Failed to open datastore", zap.Error(err))
			return err
		}
		defer db.Close()

		if err := db.EnsureSchema(cmd.Context()); err != nil {
			logging.Error("Failed to create schema", zap.Error(err))
			return err
		}

		rows, err := db.CountRows(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Table %q ready (%d rows)\n", cfg.Table, rows)
		return nil
	},
}
