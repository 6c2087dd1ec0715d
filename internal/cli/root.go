package cli

import (
	"finboard/internal/config"
	"finboard/internal/log"

	"github.com/spf13/cobra"
)

// app is the state every subcommand shares once the root has loaded it.
type app struct {
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *log.Logger
}

// NewRootCommand creates the finboard command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "finboard",
		Short: "Personal finance dashboard API",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "overrides LOG_LEVEL")

	rootCmd.AddCommand(
		newServeCommand(a),
		newWorkerCommand(a),
		newMigrateCommand(a),
		newReportCommand(a),
	)

	return rootCmd
}

func (a *app) init() error {
	if err := LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = SetupLogger(cfg.LogLevel)
	return nil
}
