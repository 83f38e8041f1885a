package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"io"
	osexec "os/exec"
	"time"
)

// NewLocalExecutor runs tools as child processes of the current process.
func NewLocalExecutor() Executor {
	return &local{}
}

type local struct{}

func (l *local) Run(ctx context.Context, inv Invocation) (*Result, error) {
	log.Debug().Str("tool", inv.Tool).Str("dir", inv.Dir).Msgf("running %s", inv)

	cmd := osexec.CommandContext(ctx, inv.Tool, inv.Args...)
	cmd.Dir = inv.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if inv.Output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, inv.Output)
		cmd.Stderr = io.MultiWriter(&stderr, inv.Output)
	}

	started := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Elapsed: time.Since(started),
	}

	if err != nil {
		var exitErr *osexec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("unable to start %s: %w", inv.Tool, err)
		}

		res.ExitCode = exitErr.ExitCode()
		log.Debug().Str("tool", inv.Tool).Int("exit_code", res.ExitCode).Dur("elapsed", res.Elapsed).Msg("tool failed")
		return res, &ExitError{Invocation: inv, Result: res}
	}

	log.Debug().Str("tool", inv.Tool).Dur("elapsed", res.Elapsed).Msg("tool finished")
	return res, nil
}
