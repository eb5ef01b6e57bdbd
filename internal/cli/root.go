package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"riskgate/internal/config"
	"riskgate/internal/logging"
	"riskgate/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  *store.SQLiteStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dataStore, err := store.NewSQLiteStore(cfg.Capital.StorePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, persistence is unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Capital.StorePath).Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "riskgate",
		Short: "riskgate - pre-trade risk and admission control",
		Long: `riskgate evaluates proposed trades against kill switches, session
guards, contract selection rules, and exposure limits, and hands allowed
trades to a shadow executor.

Use 'riskgate help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), app.Logger))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/riskgate)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newEvaluateCmd(app))
	rootCmd.AddCommand(newCapitalCmd(app))
	rootCmd.AddCommand(newHeartbeatCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("riskgate v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Calendar")
	output.Printf("  Timezone:        %s\n", cfg.Calendar.Timezone)
	output.Printf("  Session:         %s - %s\n", cfg.Calendar.Open, cfg.Calendar.Close)
	output.Println()

	output.Bold("Market Open Guard")
	output.Printf("  Enabled:         %v\n", cfg.Guard.Enabled)
	output.Printf("  Cooldown:        %d min\n", cfg.Guard.CooldownMinutes)
	output.Println()

	output.Bold("Contract Selection")
	output.Printf("  Underlyings:     %v\n", cfg.Selector.Underlyings)
	output.Printf("  No New After:    %s\n", cfg.Selector.NoNewPositionsAfter)
	output.Printf("  Prefer 0DTE To:  %s\n", cfg.Selector.Prefer0DTEBefore)
	output.Printf("  Max Spread:      %.2f\n", cfg.Selector.MaxBidAskSpread)
	output.Println()

	output.Bold("Options Exposure")
	output.Printf("  Per Trade:       %d contracts\n", cfg.Exposure.MaxContractsPerTrade)
	output.Printf("  Per Day:         %d contracts\n", cfg.Exposure.MaxContractsPerDay)
	output.Printf("  Max |Delta|:     %.1f\n", cfg.Exposure.MaxAbsNetDelta)
	output.Printf("  Max |Gamma|:     %.1f (0DTE %.1f)\n", cfg.Exposure.MaxAbsNetGamma, cfg.Exposure.MaxAbsNetGamma0DTE)
	output.Printf("  Cutoff After:    %s\n", cfg.Exposure.CutoffAfter)
	output.Println()

	output.Bold("Gate")
	output.Printf("  Tenant/Account:  %s/%s\n", cfg.Capital.Tenant, cfg.Capital.Account)
	output.Printf("  Max Drawdown:    %.1f%%\n", cfg.Gate.MaxDrawdownPct)
	output.Printf("  Daily Loss Halt: %.2f\n", cfg.Gate.StrategyDailyLossHalt)

	return nil
}
