package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flowtrack/flowgate/cmd/flowgate/cmd/access"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/config"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/logging"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "flowgate",
	Short: "Edge gate for the FlowTrack dashboard",
	Long: `flowgate sits in front of the FlowTrack dashboard and decides, per request,
whether to pass it through or redirect to login, onboarding or the dashboard.
It also administers the page access rules the dashboard's role guard reads.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfigFile(); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger, err = logging.New(cfg.Debug)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logging.Sync(logger)
		}
	},
}

// readConfigFile loads --config, or flowgate.yaml from the working directory
// when present.
func readConfigFile() error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("flowgate")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./flowgate.yaml)")
	flags.String("db-url", "", "Database connection URL (env: FLOWGATE_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: FLOWGATE_SERVER_ADDR)")
	flags.Bool("debug", false, "Enable debug logging (env: FLOWGATE_DEBUG)")

	_ = viper.BindPFlag("database_url", flags.Lookup("db-url"))
	_ = viper.BindPFlag("server.addr", flags.Lookup("server-addr"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))

	rootCmd.AddCommand(access.AccessCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
