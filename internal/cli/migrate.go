package cli

import (
	"fmt"

	"finboard/internal/backend"
	"finboard/internal/log"
	"finboard/internal/store/relational"

	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the relational schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(relational.Up), string(relational.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := relational.Up
			if len(args) == 1 {
				dir = relational.Direction(args[0])
			}
			return runMigrate(a, dir)
		},
	}
}

func runMigrate(a *app, dir relational.Direction) error {
	dialect, ok := backend.BackendType(a.cfg.DataBackend).Dialect()
	if !ok {
		return fmt.Errorf("data backend %q has no schema to migrate", a.cfg.DataBackend)
	}
	logger := a.logger.With(log.FieldOperation, log.OpMigrate, "dialect", string(dialect), "direction", string(dir))
	logger.Info("Running migrations")
	if err := relational.Migrate(dialect, a.cfg.DSN(), dir); err != nil {
		return err
	}
	logger.Info("Migrations applied")
	return nil
}
