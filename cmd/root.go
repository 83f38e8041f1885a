/*
Package cmd contains the command line interface for macrelease

Copyright © 2024 Shono <code@shono.io>
*/
package cmd

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/pkg"
	natsconfig "github.com/shono-io/macrelease/sdk/nats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

const envPrefix = "MACRELEASE"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "macrelease",
	Short: "build, sign, notarize and package a macOS app",
	Long: `macrelease turns an XcodeGen project into a signed, notarized and stapled disk image.

It validates credentials, tools and the signing identity up front, stamps the version and
build number into the project spec, and then runs each release step in order, stopping at
the first failure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// reportedError marks errors that were already rendered on the console.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var reported reportedError
	if !errors.As(err, &reported) {
		log.Error().Err(err).Msg("macrelease failed")
	}
	os.Exit(1)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.macrelease.yaml or $HOME/.macrelease.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")

	if err := viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		log.Panic().Err(err).Msg("failed to bind flags")
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in the working directory first, then in the home directory.
		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".macrelease")
	}

	pkg.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(pkg.EnvKeyReplacer)
	viper.AutomaticEnv() // read in environment variables that match

	cobra.CheckErr(pkg.BindLegacyEnv(viper.GetViper(), envPrefix))
	cobra.CheckErr(viper.BindEnv("publish.url", envPrefix+"_PUBLISH_URL", natsconfig.UrlEnvVar))
	cobra.CheckErr(viper.BindEnv("publish.jwt", envPrefix+"_PUBLISH_JWT", natsconfig.JwtEnvVar))
	cobra.CheckErr(viper.BindEnv("publish.seed", envPrefix+"_PUBLISH_SEED", natsconfig.SeedEnvVar))

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	level, err := zerolog.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		log.Warn().Str("level", viper.GetString("log_level")).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// bindRunFlags registers the overrides shared by the commands that resolve a version.
func bindRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("version", "", "version to release (default keeps the current version)")
	cmd.Flags().String("build", "", "build number to release (default increments the current build)")
	cmd.Flags().String("output-dir", "", "directory for release output (default "+pkg.DefaultOutputDir+")")
	cmd.Flags().Bool("verbose", false, "stream the output of the build tools")
}

// loadConfig binds the flags of the running command and decodes the configuration.
func loadConfig(cmd *cobra.Command) (pkg.Config, error) {
	bindings := map[string]string{
		"version":    "version",
		"build":      "build",
		"output_dir": "output-dir",
		"verbose":    "verbose",
	}
	for key, flag := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return pkg.Config{}, fmt.Errorf("unable to bind flag %s: %w", flag, err)
		}
	}

	return pkg.LoadConfig(viper.GetViper())
}
