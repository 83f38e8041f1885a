package cmd

import (
	"github.com/shono-io/macrelease/pkg"
	"github.com/spf13/cobra"
	"os"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "show the version, artifact and steps a release would produce",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		plan, err := pkg.NewReleaser(cfg).Plan()
		if err != nil {
			return err
		}

		pkg.NewConsole(os.Stdout).Plan(plan.Current, plan.Next, plan.Artifact, plan.Steps)
		return nil
	},
}

func init() {
	bindRunFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}
