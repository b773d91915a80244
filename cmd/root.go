// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// NewRootCommand builds a fresh command tree. The interactive shell creates
// one per line so flags never leak between invocations.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "screenpilot",
		Short:         "Screenpilot drives a phone screen toward a goal using a vision model.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or ~/.screenpilot/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newKeyCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// LoadConfig reads defaults, the config file and the environment, validates
// the result and initializes the global logger from it.
func LoadConfig(cfgFile string) (config.Interface, error) {
	v := viper.New()
	config.SetDefaults(v)

	if err := initializeConfig(v, cfgFile); err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "screenpilot"})
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "screenpilot"})
		return nil, fmt.Errorf("failed to load or validate config: %w", err)
	}

	observability.InitializeLogger(cfg.Logger())
	observability.GetLogger().Debug("Configuration loaded",
		zap.String("version", Version),
		zap.String("config_file", v.ConfigFileUsed()),
		zap.String("backend", cfg.Device().Backend),
		zap.String("transport", cfg.Decision().Transport))
	return cfg, nil
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		rootCmd.PrintErrln("Error:", err)
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// initializeConfig points v at the config file and the environment.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return err
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".screenpilot"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SCREENPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// configFromContext returns the configuration stored by PersistentPreRunE.
func configFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
