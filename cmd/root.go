package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/todoai/internal/output"
	"github.com/joescharf/todoai/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "todoai",
	Short: "todoai - tasks with AI briefs and follow-up threads",
	Long: `todoai keeps a list of tasks. A task can carry an AI-generated brief,
a short action plan, and a conversation thread about it with the provider
that wrote the brief. Tasks are served over HTTP, MCP, and this CLI.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.ExecuteContext(context.Background())
	closeStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/todoai/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TODOAI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	defaultDir, _ := configDirFunc()
	setDefaults(defaultDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default under stateDir.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("store.driver", store.DriverSQLite)
	viper.SetDefault("db_path", filepath.Join(stateDir, "todoai.db"))
	viper.SetDefault("mongo.uri", "")
	viper.SetDefault("mongo.database", store.DefaultMongoDatabase)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-sonnet-4-5")
	viper.SetDefault("anthropic.base_url", "")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.base_url", "")
	viper.SetDefault("ai.timeout", 2*time.Minute)
	viper.SetDefault("port", 8080)
	viper.SetDefault("reminders.enabled", true)
	viper.SetDefault("reminders.interval", time.Minute)
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.level", "info")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	setupLogging(os.Stderr)

	// The store is opened lazily, only when commands actually need it.
	// This allows config/version commands to run without a db.
}

// storeConfig builds the store configuration from viper.
func storeConfig() store.Config {
	return store.Config{
		Driver:   viper.GetString("store.driver"),
		DBPath:   viper.GetString("db_path"),
		MongoURI: viper.GetString("mongo.uri"),
		MongoDB:  viper.GetString("mongo.database"),
	}
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := store.Open(ctx, storeConfig())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

func closeStore() {
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
}
