package pkg

import (
	"context"
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/exec"
	"github.com/shono-io/macrelease/repo"
	"github.com/shono-io/macrelease/sdk"
	"io"
	"path/filepath"
	"time"
)

// Option customizes a Releaser.
type Option func(*Releaser)

// Releaser turns the project into a signed, notarized and stapled disk image.
type Releaser struct {
	cfg Config

	executor   exec.Executor
	finder     exec.Finder
	identities IdentityStore
	reporter   Reporter
	repository repo.Repository
	output     io.Writer
	now        func() time.Time
}

func NewReleaser(cfg Config, opts ...Option) *Releaser {
	r := &Releaser{
		cfg:      cfg,
		executor: exec.NewLocalExecutor(),
		finder:   exec.NewLocalFinder(XcrunTools...),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.identities == nil {
		r.identities = NewKeychain(r.executor)
	}
	return r
}

func WithExecutor(e exec.Executor) Option {
	return func(r *Releaser) {
		if e != nil {
			r.executor = e
		}
	}
}

func WithFinder(f exec.Finder) Option {
	return func(r *Releaser) {
		if f != nil {
			r.finder = f
		}
	}
}

func WithIdentityStore(s IdentityStore) Option {
	return func(r *Releaser) {
		if s != nil {
			r.identities = s
		}
	}
}

func WithReporter(rep Reporter) Option {
	return func(r *Releaser) {
		r.reporter = rep
	}
}

// WithRepository sets where the publish step records releases.
func WithRepository(rp repo.Repository) Option {
	return func(r *Releaser) {
		r.repository = rp
	}
}

// WithToolOutput streams the live output of the build tools to w.
func WithToolOutput(w io.Writer) Option {
	return func(r *Releaser) {
		r.output = w
	}
}

// WithClock overrides the timestamp source (tests).
func WithClock(clock func() time.Time) Option {
	return func(r *Releaser) {
		if clock != nil {
			r.now = clock
		}
	}
}

// Check validates every precondition without starting any build tool.
func (r *Releaser) Check(ctx context.Context) error {
	p := &Preflight{Finder: r.finder, Identities: r.identities}
	return p.Check(ctx, r.cfg)
}

// NewState creates the run state from the current project metadata.
func (r *Releaser) NewState() (*State, error) {
	path := r.cfg.Project.SpecPath()
	m, err := LoadMetadata(path)
	if err != nil {
		return nil, err
	}

	current, err := m.Current()
	if err != nil {
		return nil, err
	}

	return &State{
		Current:      current,
		Version:      current,
		MetadataPath: path,
	}, nil
}

type Plan struct {
	Current  sdk.Version
	Next     sdk.Version
	Artifact string
	Steps    []Step
}

// Plan resolves what a run would produce without touching anything on disk.
func (r *Releaser) Plan() (*Plan, error) {
	st, err := r.NewState()
	if err != nil {
		return nil, err
	}

	next, err := Resolve(st.Current, r.cfg.Version, r.cfg.Build)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Current:  st.Current,
		Next:     next,
		Artifact: r.imagePath(next),
		Steps:    r.Steps(),
	}, nil
}

// Run validates the preconditions and executes every step. It returns the summary of
// the final artifact or the error of the first failing step.
func (r *Releaser) Run(ctx context.Context) (sdk.Summary, error) {
	if err := r.Check(ctx); err != nil {
		return sdk.Summary{}, err
	}

	st, err := r.NewState()
	if err != nil {
		return sdk.Summary{}, fmt.Errorf("unable to read the current version: %w", err)
	}

	log.Info().Str("current", st.Current.String()).Msg("starting release")

	seq := &Sequencer{Reporter: r.reporter}
	if err := seq.Run(ctx, st, r.Steps()); err != nil {
		return sdk.Summary{}, err
	}

	return st.Summary(), nil
}

func (r *Releaser) outputDir() string {
	dir, err := filepath.Abs(r.cfg.OutputDir)
	if err != nil {
		return r.cfg.OutputDir
	}
	return dir
}

func (r *Releaser) archivePath() string {
	return filepath.Join(r.outputDir(), r.cfg.Project.Scheme+".xcarchive")
}

func (r *Releaser) exportDir() string {
	return filepath.Join(r.outputDir(), "export")
}

func (r *Releaser) exportOptionsPath() string {
	return filepath.Join(r.outputDir(), "ExportOptions.plist")
}

func (r *Releaser) appPath() string {
	return filepath.Join(r.exportDir(), r.cfg.Project.AppName+".app")
}

// imagePath names the artifact after the version it carries.
func (r *Releaser) imagePath(v sdk.Version) string {
	return filepath.Join(r.outputDir(), fmt.Sprintf("%s-%s.dmg", r.cfg.Project.AppName, v.Version))
}
