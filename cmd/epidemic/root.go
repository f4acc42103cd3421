package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "epidemic",
	Short:         "replicate a revision database across a partially connected mesh",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a config file")
	rootCmd.PersistentFlags().String("log-level", "info", "logging level")
	rootCmd.AddCommand(simulateCmd, serveCmd)
}

// bindConfig layers flags over environment variables prefixed with EPIDEMIC
// and the optional config file.
func bindConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("EPIDEMIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}
	return nil
}

func newLogger() (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(viper.GetString("log-level")))
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
