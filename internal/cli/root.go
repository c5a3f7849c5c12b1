package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/cslbridge/internal/model"
)

// Version is the cslbridge release
const Version = "0.1.0"

var (
	cfgFile  string
	verbose  bool
	jsonOut  bool
	backend  string
	localeID string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cslbridge",
	Short: "cslbridge - citation cluster and bibliography renderer",
	Long: `cslbridge renders citing documents through a CSL citation engine.

A document names a style, the items it cites, and its citations in
document order. cslbridge tracks the cluster order, feeds the engine,
and prints the rendered clusters and the bibliography.

Locales are read from a local directory or fetched from the CSL locales
repository, and cached.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cslbridge v%s\n", Version)
	},
}

// enginesCmd lists the registered engine backends
var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List available citation engine backends",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range newRegistry().Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.cslbridge/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&jsonOut, "json", false, "print results as JSON")
	flags.StringVar(&backend, "engine", "", "engine backend (overrides engine.backend)")
	flags.StringVar(&localeID, "locale", "", "default locale (overrides locale.default)")

	_ = viper.BindPFlag("output.verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("output.json", flags.Lookup("json"))
	_ = viper.BindPFlag("engine.backend", flags.Lookup("engine"))
	_ = viper.BindPFlag("locale.default", flags.Lookup("locale"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(enginesCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.cslbridge")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CSLBRIDGE_LOCALE_BASE_URL and friends
	viper.SetEnvPrefix("CSLBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so env vars can reach it
func setDefaults(cfg *model.Config) {
	defaults := map[string]any{
		"engine.backend":         cfg.Engine.Backend,
		"engine.format":          cfg.Engine.Format,
		"locale.default":         cfg.Locale.Default,
		"locale.dir":             cfg.Locale.Dir,
		"locale.base_url":        cfg.Locale.BaseURL,
		"locale.timeout":         cfg.Locale.Timeout,
		"locale.user_agent":      cfg.Locale.UserAgent,
		"locale.max_body_bytes":  cfg.Locale.MaxBodyBytes,
		"locale.rate_per_second": cfg.Locale.RatePerSecond,
		"locale.burst":           cfg.Locale.Burst,
		"locale.respect_robots":  cfg.Locale.RespectRobots,
		"locale.http_proxy":      cfg.Locale.HTTPProxy,
		"locale.https_proxy":     cfg.Locale.HTTPSProxy,
		"cache.enabled":          cfg.Cache.Enabled,
		"cache.dir":              cfg.Cache.Dir,
		"cache.memory_ttl":       cfg.Cache.MemoryTTL,
		"cache.disk_ttl":         cfg.Cache.DiskTTL,
		"concurrency.workers":    cfg.Concurrency.Workers,
		"output.verbose":         cfg.Output.Verbose,
		"output.json":            cfg.Output.JSON,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// loadConfig resolves the effective configuration: flags, env, file, defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// newLogger logs to stderr; debug level with --verbose
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
