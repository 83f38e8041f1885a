package pkg

import (
	"fmt"
	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"
	"github.com/shono-io/macrelease/sdk"
	"io"
	"strings"
	"time"
)

var (
	stepStyle    = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	keyStyle     = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("6"))
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Console renders progress, precondition problems and the final summary for a human.
type Console struct {
	Out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{Out: out}
}

func (c *Console) StepStarted(index, total int, label string) {
	fmt.Fprintf(c.Out, "%s %s\n", stepStyle.Render(fmt.Sprintf("==> [%d/%d]", index, total)), label)
}

func (c *Console) StepSucceeded(index, total int, label string, elapsed time.Duration) {
	fmt.Fprintf(c.Out, "%s %s %s\n",
		okStyle.Render(fmt.Sprintf("ok  [%d/%d]", index, total)),
		label,
		dimStyle.Render(fmt.Sprintf("(%s)", elapsed.Round(time.Millisecond))),
	)
}

// StepFailed prints the diagnostics first so that the last line names the failed step.
func (c *Console) StepFailed(index, total int, label string, err error) {
	if d := strings.TrimRight(Diagnostics(err), "\n"); d != "" {
		fmt.Fprintln(c.Out, dimStyle.Render("---- diagnostics ----"))
		fmt.Fprintln(c.Out, d)
		fmt.Fprintln(c.Out, dimStyle.Render("---------------------"))
	}
	fmt.Fprintf(c.Out, "%s %s: %v\n", failStyle.Render(fmt.Sprintf("FAILED step %d/%d", index, total)), label, err)
}

func (c *Console) Preconditions(err *PreconditionError) {
	fmt.Fprintln(c.Out, headingStyle.Render(fmt.Sprintf("%d precondition(s) not met", len(err.Problems))))
	for _, p := range err.Problems {
		fmt.Fprintf(c.Out, "  %s %s\n", failStyle.Render("x"), p.Error())
		if help := Remediation(p); help != "" {
			fmt.Fprintf(c.Out, "    %s\n", dimStyle.Render(help))
		}
	}
}

func (c *Console) Plan(current, next sdk.Version, artifact string, steps []Step) {
	fmt.Fprintln(c.Out, headingStyle.Render("Release plan"))
	c.row("current", current.String())
	c.row("next", next.String())
	c.row("artifact", artifact)
	for i, s := range steps {
		fmt.Fprintf(c.Out, "  %d. %s\n", i+1, s.Label)
	}
}

func (c *Console) Summary(s sdk.Summary) {
	fmt.Fprintln(c.Out, headingStyle.Render("Release ready"))
	c.row("version", s.Version.Version)
	c.row("build", fmt.Sprintf("%d", s.Version.Build))
	c.row("artifact", s.Artifact)
	c.row("size", fmt.Sprintf("%s (%d bytes)", units.HumanSize(float64(s.Size)), s.Size))
	c.row("sha256", s.SHA256)
}

func (c *Console) Releases(releases []sdk.Release) {
	if len(releases) == 0 {
		fmt.Fprintln(c.Out, dimStyle.Render("no releases published"))
		return
	}
	for _, r := range releases {
		fmt.Fprintf(c.Out, "%-12s %6d  %-10s %s  %s\n",
			r.Version, r.Build, units.HumanSize(float64(r.Size)), r.SHA256, r.PublishedAt.Format(time.RFC3339))
	}
}

func (c *Console) row(key, value string) {
	fmt.Fprintf(c.Out, "  %s %s\n", keyStyle.Render(key), value)
}
