package pkg

import (
	"bytes"
	"errors"
	"github.com/shono-io/macrelease/exec"
	"github.com/shono-io/macrelease/sdk"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"strings"
	"testing"
	"time"
)

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines[len(lines)-1]
}

func TestConsoleFailureEndsWithStep(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)

	inv := exec.Invocation{Tool: "xcodebuild", Args: []string{"archive", "-scheme", "NoteTaker"}}
	res := &exec.Result{
		ExitCode: 65,
		Stderr:   []byte("error: No signing certificate \"Developer ID Application\" found"),
		Stdout:   []byte("** ARCHIVE FAILED **"),
	}
	err := &StepError{Index: 3, Total: 8, Label: "archive", Err: &exec.ExitError{Invocation: inv, Result: res}}

	c.StepStarted(3, 8, "archive")
	c.StepFailed(3, 8, "archive", err)

	text := out.String()
	assert.Check(t, is.Contains(text, "$ xcodebuild archive -scheme NoteTaker"))
	assert.Check(t, is.Contains(text, "No signing certificate"))
	assert.Check(t, is.Contains(text, "** ARCHIVE FAILED **"))

	last := lastLine(text)
	assert.Check(t, is.Contains(last, "FAILED step 3/8"))
	assert.Check(t, is.Contains(last, "archive"))
}

func TestConsoleFailureWithoutDiagnostics(t *testing.T) {
	var out bytes.Buffer
	NewConsole(&out).StepFailed(1, 8, "stamp version", errors.New("project.yml has no MARKETING_VERSION setting"))

	assert.Check(t, !strings.Contains(out.String(), "diagnostics"))
	assert.Check(t, is.Contains(lastLine(out.String()), "FAILED step 1/8"))
}

func TestConsolePreconditions(t *testing.T) {
	var out bytes.Buffer
	NewConsole(&out).Preconditions(&PreconditionError{Problems: []Problem{
		{Kind: MissingField, Subject: "app_password"},
		{Kind: MissingTool, Subject: "xcodegen"},
	}})

	text := out.String()
	assert.Check(t, is.Contains(text, "2 precondition(s) not met"))
	assert.Check(t, is.Contains(text, "missing field: app_password"))
	assert.Check(t, is.Contains(text, "appleid.apple.com"))
	assert.Check(t, is.Contains(text, "brew install xcodegen"))
}

func TestConsoleSummary(t *testing.T) {
	var out bytes.Buffer
	NewConsole(&out).Summary(sdk.Summary{
		Version:  sdk.Version{Version: "1.4.0", Build: 42},
		Artifact: "/out/NoteTaker-1.4.0.dmg",
		Size:     2048,
		SHA256:   "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	})

	text := out.String()
	assert.Check(t, is.Contains(text, "1.4.0"))
	assert.Check(t, is.Contains(text, "42"))
	assert.Check(t, is.Contains(text, "/out/NoteTaker-1.4.0.dmg"))
	assert.Check(t, is.Contains(text, "2048 bytes"))
	assert.Check(t, is.Contains(text, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"))
}

func TestConsoleReleases(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)

	c.Releases(nil)
	assert.Check(t, is.Contains(out.String(), "no releases published"))

	out.Reset()
	c.Releases([]sdk.Release{{
		Version:     "1.4.0",
		Build:       42,
		Size:        2048,
		SHA256:      "abc123",
		PublishedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}})
	assert.Check(t, is.Contains(out.String(), "2024-03-01T12:00:00Z"))
	assert.Check(t, is.Contains(out.String(), "abc123"))
}
