// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/internal/config"
	"github.com/flowlens/flowlens-cli/internal/observability"
)

var (
	cfgFile string

	// appConfig is the resolved configuration for the current invocation. It
	// is populated by the root command's PersistentPreRunE before any RunE
	// fires.
	appConfig *config.Config
)

// NewRootCommand builds a fresh root command with all subcommands attached.
// A new instance per invocation keeps flag state from leaking between runs.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowlens",
		Short: "Flowlens turns raw HAR captures and bot logs into diagnosed payment flows.",
		Long: `Flowlens normalizes HAR captures and bot service logs into canonical
records, correlates them into per-transaction flow summaries, detects
recurring failure patterns, and drives an LLM triage pass over the failures.`,
		// Version is dynamically set at build time. See cmd/version.go.
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotenv()

			v, err := initializeViper(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Initialize a fallback logger so the failure is still visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "flowlens"})
				return err
			}
			appConfig = cfg

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting flowlens", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.flowlens.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newDiagnoseCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command under the given signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Use the logger if available, otherwise fall back to stderr.
		if logger := observability.GetLogger(); logger != nil && logger != zap.NewNop() {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// commandFlagKeys maps override flags to the config keys they shadow, per
// command. Binding these explicitly is what lets a flag take precedence over
// the config file and environment with the right priority.
var commandFlagKeys = map[string]map[string]string{
	"ingest": {
		"har-dir":     "ingest.har_dir",
		"log-dir":     "ingest.log_dir",
		"concurrency": "ingest.concurrency",
	},
	"analyze": {
		"rules": "detector.rules_file",
	},
	"diagnose": {
		"merchant": "diagnose.merchant",
	},
	"chat": {
		"merchant": "diagnose.merchant",
	},
	"watch": {
		"from-start": "watch.from_start",
		"persist":    "watch.persist",
	},
}

// initializeViper builds the configuration source stack: defaults, then the
// config file, then FLOWLENS_-prefixed environment variables, then the flags
// of the command actually running.
func initializeViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".flowlens")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FLOWLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}

	for flagName, key := range commandFlagKeys[cmd.Name()] {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, err
		}
	}
	return v, nil
}
