package cmd

import (
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/exec"
	"github.com/shono-io/macrelease/pkg"
	"github.com/shono-io/macrelease/repo"
	natsconfig "github.com/shono-io/macrelease/sdk/nats"
	"github.com/spf13/cobra"
	"os"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "run the full release pipeline",
	Long: `Validates the environment, stamps the version, then generates, archives, exports,
packages, notarizes, staples and checksums the app. The run stops at the first failing step.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		console := pkg.NewConsole(os.Stdout)
		opts, closer, err := releaserOptions(cmd.Context(), cfg, console)
		if err != nil {
			return err
		}
		defer closer()

		summary, err := pkg.NewReleaser(cfg, opts...).Run(cmd.Context())
		if err != nil {
			return report(console, err)
		}

		console.Summary(summary)
		return nil
	},
}

func init() {
	bindRunFlags(releaseCmd)
	rootCmd.AddCommand(releaseCmd)
}

// releaserOptions wires the local tools, the output formatter and, when configured, the
// release repository.
func releaserOptions(ctx context.Context, cfg pkg.Config, console *pkg.Console) ([]pkg.Option, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}

	finder := exec.NewLocalFinder(pkg.XcrunTools...)
	formatter, err := exec.FormatterFor(ctx, finder, cfg.Formatter)
	if err != nil {
		return nil, nil, err
	}

	opts := []pkg.Option{
		pkg.WithExecutor(exec.WithFormatter(exec.NewLocalExecutor(), formatter)),
		pkg.WithFinder(finder),
		pkg.WithReporter(console),
	}
	if cfg.Verbose {
		opts = append(opts, pkg.WithToolOutput(os.Stderr))
	}

	closer := func() {}
	if cfg.Publish.Enabled() {
		r, err := openRepository(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pkg.WithRepository(r))
		closer = func() {
			if err := r.Close(); err != nil {
				log.Warn().Err(err).Msg("unable to close release repository")
			}
		}
	}

	return opts, closer, nil
}

func openRepository(cfg pkg.Config) (repo.Repository, error) {
	nc, err := natsconfig.Connect(cfg.Publish.Url, "macrelease", cfg.Publish.Jwt, cfg.Publish.Seed)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to the release repository: %w", err)
	}

	r, err := repo.NewNatsRepository(nc, repo.Config{
		KeyValueBucket:    cfg.Publish.KvBucket,
		ObjectStoreBucket: cfg.Publish.ObjectBucket,
		Prefix:            cfg.Publish.Prefix,
	})
	if err != nil {
		nc.Close()
		return nil, err
	}
	return r, nil
}

// report renders errors the console knows how to explain. Step failures were already
// rendered by the sequencer.
func report(console *pkg.Console, err error) error {
	var pre *pkg.PreconditionError
	if errors.As(err, &pre) {
		console.Preconditions(pre)
		return reportedError{err}
	}

	var step *pkg.StepError
	if errors.As(err, &step) {
		return reportedError{err}
	}

	return err
}
