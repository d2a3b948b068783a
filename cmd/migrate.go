package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the lead database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}
		zap.L().Info("schema up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
