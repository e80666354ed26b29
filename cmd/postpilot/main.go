package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"postpilot/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration
	headless   bool

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "postpilot",
	Short: "postpilot - resilient social publishing pipeline",
	Long: `postpilot selects a fresh news item, composes a short post for it,
and publishes the post through a real browser session.

Every external dependency degrades instead of failing: no news means the
fallback text is posted, a failed generation falls back likewise, and the
browser flow records a screenshot at the stage where it gave up.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("headless") {
			cfg.Publisher.Headless = headless
		}

		logger.Debug("configuration loaded",
			zap.String("config", configPath),
			zap.String("news_api_key", config.Mask(cfg.News.APIKey)),
			zap.String("generation_api_key", config.Mask(cfg.Generation.APIKey)),
			zap.String("account_password", config.Mask(cfg.Account.Password)))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "postpilot.yaml", "Config file path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall attempt timeout")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Run the browser headless")

	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(proxyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
