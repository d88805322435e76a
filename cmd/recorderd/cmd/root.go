// Package cmd implements the CLI commands for recorderd.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/jmylchreest/tvarr-recorder/internal/config"
	"github.com/jmylchreest/tvarr-recorder/internal/observability"
	"github.com/jmylchreest/tvarr-recorder/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "recorderd",
	Short:   "Multi-stream video surveillance recorder",
	Version: version.Short(),
	Long: `recorderd continuously records multiple RTSP/ONVIF camera streams to disk
as MP4 segments, catalogs them in a database, and serves a queryable timeline
with HTTP range-capable playback and generated manifests for seeking.

Each configured stream runs its own recorder goroutine that rotates segments
on a fixed interval, optionally pre-buffering frames ahead of motion-detection
events so the recording captures the moments leading up to the trigger.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.recorderd.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (text, json)")

	mustBindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/recorderd")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".recorderd")
	}

	viper.SetEnvPrefix("RECORDERD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Hot-reload the log level when the config file changes on disk
	// (fsnotify, driven by viper.WatchConfig). Other settings are read
	// once at startup and flow into recorder goroutines that are
	// already running; only the log level, which every logger consults
	// through observability.GlobalLogLevel on each call, is safe to
	// change without a restart.
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		observability.SetLogLevel(viper.GetString("logging.level"))
		fmt.Fprintf(os.Stderr, "config file changed, log level now %s\n", observability.GetLogLevel())
	})
}

// initLogging configures the slog logger based on configuration, routing
// through observability.NewLogger so the process default logger shares
// the same GlobalLogLevel that OnConfigChange updates at runtime.
func initLogging() error {
	cfg := config.LoggingConfig{
		Level:      strings.ToLower(viper.GetString("logging.level")),
		Format:     strings.ToLower(viper.GetString("logging.format")),
		AddSource:  viper.GetBool("logging.add_source"),
		TimeFormat: viper.GetString("logging.time_format"),
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}

	logger := observability.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	return nil
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
