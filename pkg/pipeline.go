package pkg

import (
	"context"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/sdk"
	"time"
)

// State is owned by a single run and threaded through its steps. Each field is written
// only by the step that produces it.
type State struct {
	Step int

	Current sdk.Version
	Version sdk.Version

	MetadataPath  string
	ProjectPath   string
	ArchivePath   string
	ExportOptions string
	ExportDir     string
	AppPath       string
	ImagePath     string
	SubmissionID  string

	Size   int64
	SHA256 string
}

func (s *State) Summary() sdk.Summary {
	return sdk.Summary{
		Version:  s.Version,
		Artifact: s.ImagePath,
		Size:     s.Size,
		SHA256:   s.SHA256,
	}
}

type Step struct {
	Label string
	Run   func(ctx context.Context, st *State) error
}

type Reporter interface {
	StepStarted(index, total int, label string)
	StepSucceeded(index, total int, label string, elapsed time.Duration)
	StepFailed(index, total int, label string, err error)
}

type Sequencer struct {
	Reporter Reporter
}

// Run executes steps strictly in order against st and halts at the first failure. Side
// effects of the steps that already ran are left in place.
func (s *Sequencer) Run(ctx context.Context, st *State, steps []Step) error {
	total := len(steps)
	for i, step := range steps {
		index := i + 1
		st.Step = index

		if err := ctx.Err(); err != nil {
			return s.fail(index, total, step.Label, err)
		}

		s.reporter().StepStarted(index, total, step.Label)
		log.Debug().Int("step", index).Str("label", step.Label).Msg("step started")

		started := time.Now()
		if err := step.Run(ctx, st); err != nil {
			return s.fail(index, total, step.Label, err)
		}

		elapsed := time.Since(started)
		log.Debug().Int("step", index).Str("label", step.Label).Dur("elapsed", elapsed).Msg("step completed")
		s.reporter().StepSucceeded(index, total, step.Label, elapsed)
	}
	return nil
}

func (s *Sequencer) fail(index, total int, label string, err error) error {
	log.Debug().Int("step", index).Str("label", label).Err(err).Msg("step failed")
	s.reporter().StepFailed(index, total, label, err)
	return &StepError{Index: index, Total: total, Label: label, Err: err}
}

func (s *Sequencer) reporter() Reporter {
	if s.Reporter == nil {
		return nopReporter{}
	}
	return s.Reporter
}

type nopReporter struct{}

func (nopReporter) StepStarted(int, int, string)                 {}
func (nopReporter) StepSucceeded(int, int, string, time.Duration) {}
func (nopReporter) StepFailed(int, int, string, error)           {}
