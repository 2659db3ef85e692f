// Package dependency holds the flag and signal plumbing shared by the train
// and serve commands.
package dependency

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jayakrishnap100/california-housing-mlops/internal/config"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

// InitCommandAndConfig registers the common flags on cmd and binds them to v.
// The returned pointer receives the --config value after flag parsing.
func InitCommandAndConfig(cmd *cobra.Command, v *viper.Viper) *string {
	defaults := config.New()
	flags := cmd.Flags()

	cfgFile := flags.String("config", "", "path to a YAML config file")
	flags.String("models-dir", defaults.Storage.ModelsDir, "models root holding model_<timestamp> dirs and latest")
	flags.String("tracking-dir", defaults.Storage.TrackingDir, "experiment tracking database and artifact dir")
	flags.String("log-level", defaults.Log.Level, "log level: debug, info, warn, error")
	flags.String("log-format", defaults.Log.Format, "log format: json or console")
	flags.String("log-dir", defaults.Log.Dir, "directory of a rotating log file, empty to log to stdout only")

	for key, flag := range map[string]string{
		"storage.modelsDir":   "models-dir",
		"storage.trackingDir": "tracking-dir",
		"log.level":           "log-level",
		"log.format":          "log-format",
		"log.dir":             "log-dir",
	} {
		BindFlag(v, cmd, key, flag)
	}
	return cfgFile
}

// BindFlag binds the flag named flag to the config key. It panics on an
// unknown flag.
func BindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Errorf("bind flag %s to %s: %w", flag, key, err))
	}
}

// LoadConfig loads, validates and applies the logging section of the config.
func LoadConfig(v *viper.Viper, cfgFile, name string) (*config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := log.SetupLogger(cfg.LogOptions(name)); err != nil {
		return nil, fmt.Errorf("init %s logger: %w", name, err)
	}
	return cfg, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
