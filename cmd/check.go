package cmd

import (
	"github.com/shono-io/macrelease/pkg"
	"github.com/spf13/cobra"
	"os"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "validate credentials, tools and the signing identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		console := pkg.NewConsole(os.Stdout)
		if err := pkg.NewReleaser(cfg).Check(cmd.Context()); err != nil {
			return report(console, err)
		}

		cmd.Println("all preconditions met")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
