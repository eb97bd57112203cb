// Package cli provides the topodraw command-line interface: rendering scan
// reports, live scans, the HTTP service and the run store.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/topodraw/internal/config"
	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/logging"
)

const envPrefix = "TOPODRAW"

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "topodraw",
	Short: "Draw network diagrams from nmap scans",
	Long: `topodraw reads nmap XML reports and renders them as draw.io diagrams:
hosts grouped by hop distance, each with its names, addresses, ports and OS,
next to one table per distinct service listing every address it runs on.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./topodraw.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")

	bindFlag(rootCmd, "log-level", "logging.level")
	bindFlag(rootCmd, "log-format", "logging.format")
}

// bindFlag binds a flag of cmd to a viper key. Persistent flags are looked
// up first.
func bindFlag(cmd *cobra.Command, flag, key string) {
	var f *pflag.Flag
	if f = cmd.PersistentFlags().Lookup(flag); f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := viper.BindPFlag(key, f); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", flag, err)
	}
}

// bindFlags binds the flags of the running command. Commands share keys such
// as "input", so binding happens when a command runs rather than in init.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		bindFlag(cmd, flag, key)
	}
}

// initConfig locates the config file and enables environment overrides.
func initConfig() {
	if cfgFile == "" {
		if _, err := os.Stat("topodraw.yaml"); err == nil {
			cfgFile = "topodraw.yaml"
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if verbose && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", cfgFile)
	}
}

// loadConfig reads the config file, applies flag and environment overrides
// and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, viper.GetViper())
	if verbose {
		cfg.Logging.Level = logging.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to initialize logging", err)
	}
	logging.SetDefault(logger)
	return cfg, nil
}

// applyOverrides copies every key set by a flag or a TOPODRAW_ variable
// onto cfg.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("input", &cfg.Input)
	str("output", &cfg.Output)
	boolean("services.skip_incomplete", &cfg.Services.SkipIncomplete)
	boolean("resolve.enabled", &cfg.Resolve.Enabled)
	str("resolve.server", &cfg.Resolve.Server)
	str("metrics.textfile", &cfg.Metrics.Textfile)
	str("scan.ports", &cfg.Scan.Ports)
	str("scan.schedule", &cfg.Scan.Schedule)
	if v.IsSet("scan.targets") {
		cfg.Scan.Targets = v.GetStringSlice("scan.targets")
	}
	str("api.listen_addr", &cfg.API.ListenAddr)
	if v.IsSet("api.port") {
		cfg.API.Port = v.GetInt("api.port")
	}
	str("database.host", &cfg.Database.Host)
	str("database.database", &cfg.Database.Database)
	str("database.username", &cfg.Database.Username)
	str("database.password", &cfg.Database.Password)

	if v.IsSet("logging.level") {
		cfg.Logging.Level = logging.LogLevel(v.GetString("logging.level"))
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = logging.LogFormat(v.GetString("logging.format"))
	}
}

// exitCode maps an error to the process exit status: 2 for bad
// configuration or input, 1 for everything else.
func exitCode(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeValidation, errors.CodeConfiguration, errors.CodeMalformedRecord:
		return 2
	default:
		return 1
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}
