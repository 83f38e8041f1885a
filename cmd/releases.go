package cmd

import (
	"errors"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/pkg"
	"github.com/spf13/cobra"
	"os"
)

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "list releases recorded in the release repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if !cfg.Publish.Enabled() {
			return errors.New("no release repository configured, set publish.url")
		}

		r, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := r.Close(); err != nil {
				log.Warn().Err(err).Msg("unable to close release repository")
			}
		}()

		releases, err := r.List(cmd.Context())
		if err != nil {
			return err
		}

		pkg.NewConsole(os.Stdout).Releases(releases)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(releasesCmd)
}
