package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mdgraph/mdgraph"
	"github.com/mdgraph/mdgraph/pkg/config"
	"github.com/mdgraph/mdgraph/pkg/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "mdgraph",
		Short: "mdgraph: local knowledge retrieval for Markdown corpora",
		Long: `mdgraph indexes a directory of Markdown documents into a searchable
knowledge base. Documents are split into sections, embedded into a vector
index, and connected through typed wikilinks into a document graph.

Search fuses vector similarity, link-graph proximity, and fulltext relevance.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mdgraph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("docs-dir", "", "root directory of the Markdown corpus")
	rootCmd.PersistentFlags().String("db-path", "", "path to the SQLite index database")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// .env keeps API keys out of the shell profile
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("mdgraph")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads configuration and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("docs-dir") {
		cfg.DocsDir, _ = cmd.Flags().GetString("docs-dir")
	}
	if cmd.Flags().Changed("db-path") {
		cfg.Database.Path, _ = cmd.Flags().GetString("db-path")
	}
	return cfg, nil
}

// openEngine builds the engine from config. The caller owns Close.
func openEngine(cmd *cobra.Command) (*mdgraph.Engine, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	engine, err := mdgraph.New(cfg, &mdgraph.Options{Logger: log})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return engine, cfg, nil
}
