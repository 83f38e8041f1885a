package exec

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

const redacted = "****"

type (
	Executor interface {
		Run(ctx context.Context, inv Invocation) (*Result, error)
	}

	Invocation struct {
		Tool string
		Args []string
		Dir  string

		// Secrets are replaced in every rendering of the invocation.
		Secrets []string

		// Formatted marks invocations whose live output may be piped through a formatter.
		Formatted bool

		// Output receives the live combined output; nil discards it.
		Output io.Writer
	}

	Result struct {
		ExitCode int
		Stdout   []byte
		Stderr   []byte
		Elapsed  time.Duration
	}

	ExitError struct {
		Invocation Invocation
		Result     *Result
	}
)

func (i Invocation) String() string {
	parts := append([]string{i.Tool}, i.Args...)
	return i.Redact(strings.Join(parts, " "))
}

// Redact replaces every secret of the invocation found in s.
func (i Invocation) Redact(s string) string {
	for _, secret := range i.Secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}

func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Invocation.Tool, e.Result.ExitCode)
}

// Diagnostics returns the captured output of the failed tool, stderr first.
func (e *ExitError) Diagnostics() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "$ %s\n", e.Invocation)
	if out := strings.TrimSpace(string(e.Result.Stderr)); out != "" {
		sb.WriteString(e.Invocation.Redact(out))
		sb.WriteString("\n")
	}
	if out := strings.TrimSpace(string(e.Result.Stdout)); out != "" {
		sb.WriteString(e.Invocation.Redact(tail(out, maxDiagnosticLines)))
		sb.WriteString("\n")
	}
	return sb.String()
}

const maxDiagnosticLines = 60

func tail(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return fmt.Sprintf("... (%d lines omitted)\n%s", len(lines)-n, strings.Join(lines[len(lines)-n:], "\n"))
}
