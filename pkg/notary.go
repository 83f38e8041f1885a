package pkg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/exec"
	"github.com/shono-io/macrelease/sdk"
	"strings"
)

// Notary submits artifacts to the notarization service through notarytool and staples
// the resulting tickets.
type Notary struct {
	Executor exec.Executor
	AppleID  string
	TeamID   string
	Password string
}

type Submission struct {
	ID      string           `json:"id"`
	Status  sdk.NotaryStatus `json:"status"`
	Message string           `json:"message"`
}

type NotaryLog struct {
	JobID         string        `json:"jobId"`
	Status        string        `json:"status"`
	StatusSummary string        `json:"statusSummary"`
	Issues        []NotaryIssue `json:"issues"`
}

type NotaryIssue struct {
	Severity     string `json:"severity"`
	Path         string `json:"path"`
	Message      string `json:"message"`
	Architecture string `json:"architecture"`
	DocUrl       string `json:"docUrl"`
}

// RejectionError is returned when the service refuses an artifact.
type RejectionError struct {
	Submission Submission
	Log        *NotaryLog
	Raw        string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("notarization %s was %s: %s", e.Submission.ID, strings.ToLower(string(e.Submission.Status)), e.Submission.Message)
}

func (e *RejectionError) Diagnostics() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "submission %s: %s\n", e.Submission.ID, e.Submission.Status)
	if e.Log != nil {
		if e.Log.StatusSummary != "" {
			fmt.Fprintf(&sb, "%s\n", e.Log.StatusSummary)
		}
		for _, issue := range e.Log.Issues {
			fmt.Fprintf(&sb, "  [%s] %s: %s", issue.Severity, issue.Path, issue.Message)
			if issue.Architecture != "" {
				fmt.Fprintf(&sb, " (%s)", issue.Architecture)
			}
			sb.WriteString("\n")
			if issue.DocUrl != "" {
				fmt.Fprintf(&sb, "    see %s\n", issue.DocUrl)
			}
		}
		return sb.String()
	}
	if e.Raw != "" {
		sb.WriteString(e.Raw)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (n *Notary) credentials() []string {
	return []string{"--apple-id", n.AppleID, "--team-id", n.TeamID, "--password", n.Password}
}

// Submit uploads path and blocks until the service reaches a terminal status.
func (n *Notary) Submit(ctx context.Context, path string) (*Submission, error) {
	args := append([]string{"notarytool", "submit", path}, n.credentials()...)
	args = append(args, "--wait", "--output-format", "json")

	res, runErr := n.Executor.Run(ctx, exec.Invocation{
		Tool:    "xcrun",
		Args:    args,
		Secrets: []string{n.Password},
	})

	var sub Submission
	if res == nil || json.Unmarshal(res.Stdout, &sub) != nil || sub.ID == "" {
		if runErr != nil {
			return nil, runErr
		}
		return nil, fmt.Errorf("unable to read notarization result")
	}

	log.Info().Str("submission", sub.ID).Str("status", string(sub.Status)).Msg("notarization finished")

	if sub.Status == sdk.AcceptedStatus && runErr == nil && res.Success() {
		return &sub, nil
	}

	if sub.Status == sdk.InvalidStatus || sub.Status == sdk.RejectedStatus {
		return nil, n.rejection(ctx, sub)
	}

	if runErr != nil {
		return nil, runErr
	}
	if sub.Status == sdk.InProgressStatus {
		return nil, fmt.Errorf("notarization %s is still in progress, check it later with: xcrun notarytool info %s", sub.ID, sub.ID)
	}
	return nil, fmt.Errorf("notarization %s ended with unexpected status %q", sub.ID, sub.Status)
}

func (n *Notary) rejection(ctx context.Context, sub Submission) error {
	rej := &RejectionError{Submission: sub}

	l, raw, err := n.Log(ctx, sub.ID)
	if err != nil {
		log.Warn().Err(err).Str("submission", sub.ID).Msg("unable to fetch notarization log")
		rej.Raw = fmt.Sprintf("notarization log unavailable: %v", err)
		return rej
	}

	rej.Log = l
	rej.Raw = raw
	return rej
}

// Log fetches the service's log for a submission. The raw text is returned even when it
// cannot be decoded.
func (n *Notary) Log(ctx context.Context, id string) (*NotaryLog, string, error) {
	args := append([]string{"notarytool", "log", id}, n.credentials()...)
	res, err := n.Executor.Run(ctx, exec.Invocation{
		Tool:    "xcrun",
		Args:    args,
		Secrets: []string{n.Password},
	})
	if err != nil {
		return nil, "", err
	}

	raw := strings.TrimSpace(string(res.Stdout))
	var l NotaryLog
	if err := json.Unmarshal(res.Stdout, &l); err != nil {
		return nil, raw, nil
	}
	return &l, raw, nil
}

// Staple attaches the notarization ticket to path and validates the result.
func (n *Notary) Staple(ctx context.Context, path string) error {
	for _, action := range []string{"staple", "validate"} {
		if _, err := n.Executor.Run(ctx, exec.Invocation{
			Tool: "xcrun",
			Args: []string{"stapler", action, path},
		}); err != nil {
			return err
		}
	}
	return nil
}

// IsRejection reports whether err carries a notarization rejection.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}
