package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/lexiguard/lexiguard/internal/config"
	"github.com/lexiguard/lexiguard/pkg/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile    string
	configFile string
	dataDir    string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "lexiguard",
		Short: "LexiGuard - grounded legal and compliance Q&A",
		Long: `LexiGuard answers legal and compliance questions from an indexed set of
legal documents. Every answer is checked against the retrieved passages and
regenerated when it is not supported by them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", opts.envFile, err)
			}
			if opts.configFile != "" {
				if err := os.Setenv("LEXIGUARD_CONFIG", opts.configFile); err != nil {
					return err
				}
			}
			level := opts.logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			format := opts.logFormat
			if format == "" {
				format = os.Getenv("LOG_FORMAT")
			}
			log.SetLogger(log.NewLoggerWithFormat(log.ParseLevel(level), log.Format(format)))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.GetLogger().Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (or set LEXIGUARD_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory (or set DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (or set LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "console or json (or set LOG_FORMAT)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newAskCmd(opts))
	rootCmd.AddCommand(newIngestCmd(opts))
	return rootCmd
}

func (o *rootOptions) loadConfig(extra ...config.Option) (*config.Config, error) {
	opts := append([]config.Option{config.WithDataDir(o.dataDir)}, extra...)
	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
