package pkg

import (
	"errors"
	"fmt"
	"go.uber.org/multierr"
	"strings"
)

type ProblemKind string

const (
	MissingField    ProblemKind = "missing field"
	InvalidField    ProblemKind = "invalid field"
	MissingTool     ProblemKind = "missing tool"
	MissingIdentity ProblemKind = "missing signing identity"
)

// Problem is a single precondition violation.
type Problem struct {
	Kind    ProblemKind
	Subject string
	Detail  string
}

func (p Problem) Error() string {
	if p.Detail == "" {
		return fmt.Sprintf("%s: %s", p.Kind, p.Subject)
	}
	return fmt.Sprintf("%s: %s (%s)", p.Kind, p.Subject, p.Detail)
}

// PreconditionError lists every violated precondition of a run.
type PreconditionError struct {
	Problems []Problem
}

func (e *PreconditionError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Error())
	}
	return fmt.Sprintf("%d precondition(s) not met: %s", len(e.Problems), strings.Join(parts, "; "))
}

// newPreconditionError flattens an error accumulated with multierr. Errors that are not
// problems are kept as tool problems so nothing is lost.
func newPreconditionError(err error) *PreconditionError {
	if err == nil {
		return nil
	}

	result := &PreconditionError{}
	for _, e := range multierr.Errors(err) {
		var p Problem
		if errors.As(e, &p) {
			result.Problems = append(result.Problems, p)
			continue
		}
		result.Problems = append(result.Problems, Problem{Kind: MissingTool, Subject: "unknown", Detail: e.Error()})
	}
	return result
}

// PostconditionError signals that a tool reported success without producing its output.
type PostconditionError struct {
	Path   string
	Reason string
}

func (e *PostconditionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("expected output %s was not produced", e.Path)
	}
	return fmt.Sprintf("output %s is not valid: %s", e.Path, e.Reason)
}

// StepError identifies the step that halted a run.
type StepError struct {
	Index int
	Total int
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d/%d (%s) failed: %v", e.Index, e.Total, e.Label, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Diagnostics returns the captured output of whatever failed, if anything captured it.
func Diagnostics(err error) string {
	var d interface{ Diagnostics() string }
	if errors.As(err, &d) {
		return d.Diagnostics()
	}
	return ""
}

// Remediation explains where to obtain or how to fix the subject of a problem.
func Remediation(p Problem) string {
	switch p.Kind {
	case MissingField, InvalidField:
		return fieldHelp[p.Subject]
	case MissingTool:
		if help, ok := toolHelp[p.Subject]; ok {
			return help
		}
		return fmt.Sprintf("install %s and make sure it is on PATH", p.Subject)
	case MissingIdentity:
		return "create a \"Developer ID Application\" certificate in Xcode > Settings > Accounts > Manage Certificates, " +
			"or import the .p12 into the login keychain, then verify with: security find-identity -v -p codesigning"
	}
	return ""
}

var fieldHelp = map[string]string{
	"team_id":      "set MACRELEASE_TEAM_ID (or APPLE_TEAM_ID); the 10 character Team ID is listed under Membership details at https://developer.apple.com/account",
	"apple_id":     "set MACRELEASE_APPLE_ID (or APPLE_ID) to the Apple Account email used for notarization",
	"app_password": "set MACRELEASE_APP_PASSWORD (or APPLE_APP_PASSWORD); generate an app-specific password at https://appleid.apple.com under Sign-In and Security",
	"project.name": "set project.name in the config file or MACRELEASE_PROJECT_NAME to the XcodeGen project name",
	"build":        "pass a non-negative integer with --build, or omit it to increment the current build number",
	"version":      "pass a version such as 1.2.0 with --version, or omit it to keep the current version",
}

var toolHelp = map[string]string{
	"xcodegen":   "install XcodeGen: brew install xcodegen",
	"xcodebuild": "install Xcode from the App Store and run: sudo xcode-select -s /Applications/Xcode.app",
	"xcrun":      "install the Xcode command line tools: xcode-select --install",
	"notarytool": "notarytool ships with Xcode 13 or later; select a recent Xcode with xcode-select",
	"stapler":    "stapler ships with Xcode; select it with xcode-select",
	"hdiutil":    "hdiutil is part of macOS; run on a macOS host",
	"ditto":      "ditto is part of macOS; run on a macOS host",
	"security":   "security is part of macOS; run on a macOS host",
}
