package exec

import (
	"context"
	"fmt"
	"github.com/rs/zerolog/log"
	"io"
	osexec "os/exec"
	"sync"
)

type Formatter interface {
	// Wrap returns a writer that renders into w. Closing it flushes the rendering.
	Wrap(ctx context.Context, w io.Writer) (io.WriteCloser, error)
}

// Raw passes tool output through untouched.
type Raw struct{}

func (Raw) Wrap(_ context.Context, w io.Writer) (io.WriteCloser, error) {
	return nopCloser{w}, nil
}

// Pipe renders tool output through an external formatter such as xcbeautify.
type Pipe struct {
	Path string
	Args []string
}

func (p Pipe) Wrap(ctx context.Context, w io.Writer) (io.WriteCloser, error) {
	cmd := osexec.CommandContext(ctx, p.Path, p.Args...)
	cmd.Stdout = w
	cmd.Stderr = w

	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("unable to open formatter input: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start formatter %s: %w", p.Path, err)
	}

	return &pipeWriter{in: in, cmd: cmd}, nil
}

// pipeWriter never reports a write error. Once the formatter stops reading, the rest
// of the output is dropped so the tool and its captured output are unaffected.
type pipeWriter struct {
	mu     sync.Mutex
	in     io.WriteCloser
	cmd    *osexec.Cmd
	broken bool
}

func (p *pipeWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.broken {
		return len(b), nil
	}
	if _, err := p.in.Write(b); err != nil {
		p.broken = true
		log.Warn().Err(err).Str("formatter", p.cmd.Path).Msg("formatter stopped reading, dropping formatted output")
	}
	return len(b), nil
}

func (p *pipeWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.in.Close(); err != nil && !p.broken {
		return err
	}

	// -- a formatter failing must never fail the step, the raw output is still captured
	if err := p.cmd.Wait(); err != nil {
		log.Warn().Err(err).Str("formatter", p.cmd.Path).Msg("formatter exited with an error")
	}
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// WithFormatter decorates e so that invocations flagged as Formatted stream their live
// output through f. Captured output in the Result stays raw.
func WithFormatter(e Executor, f Formatter) Executor {
	if f == nil {
		return e
	}
	return &formatted{next: e, formatter: f}
}

type formatted struct {
	next      Executor
	formatter Formatter
}

func (f *formatted) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if !inv.Formatted || inv.Output == nil {
		return f.next.Run(ctx, inv)
	}

	w, err := f.formatter.Wrap(ctx, inv.Output)
	if err != nil {
		log.Warn().Err(err).Msg("falling back to raw output")
		return f.next.Run(ctx, inv)
	}

	inv.Output = w
	res, runErr := f.next.Run(ctx, inv)
	if err := w.Close(); err != nil {
		log.Warn().Err(err).Msg("unable to flush formatter")
	}

	return res, runErr
}
