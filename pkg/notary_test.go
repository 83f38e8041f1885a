package pkg

import (
	"context"
	"errors"
	"github.com/shono-io/macrelease/exec"
	"github.com/shono-io/macrelease/sdk"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"strings"
	"testing"
)

const rejectionLog = `{
  "jobId": "4ba7c420-7444-44bc-a190-1bd4bad97b13",
  "status": "Invalid",
  "statusSummary": "Archive contains critical validation errors",
  "issues": [
    {
      "severity": "error",
      "path": "NoteTaker-1.4.0.dmg/NoteTaker.app/Contents/MacOS/NoteTaker",
      "message": "The signature does not include a secure timestamp.",
      "architecture": "arm64",
      "docUrl": "https://developer.apple.com/documentation/security/notarizing_macos_software_before_distribution/resolving_common_notarization_issues"
    }
  ]
}`

func testNotary(e exec.Executor) *Notary {
	return &Notary{Executor: e, AppleID: "release@example.com", TeamID: "ABCDE12345", Password: "abcd-efgh-ijkl-mnop"}
}

// notarytool dispatches on the sub command, which is the second argument to xcrun.
func notarytool(submit, log func(inv exec.Invocation) (*exec.Result, error)) *fakeExecutor {
	f := newFakeExecutor()
	f.on("xcrun notarytool", func(inv exec.Invocation) (*exec.Result, error) {
		if inv.Args[1] == "log" {
			return log(inv)
		}
		return submit(inv)
	})
	return f
}

func exitWith(inv exec.Invocation, code int, stdout string) (*exec.Result, error) {
	res := &exec.Result{ExitCode: code, Stdout: []byte(stdout)}
	return res, &exec.ExitError{Invocation: inv, Result: res}
}

func TestSubmitAccepted(t *testing.T) {
	fake := fakeToolchain(Config{})
	sub, err := testNotary(fake).Submit(context.Background(), "/out/NoteTaker-1.4.0.dmg")
	assert.NilError(t, err)
	assert.Equal(t, sub.Status, sdk.AcceptedStatus)
	assert.Equal(t, sub.ID, "2efe2717-52ef-43a5-96dc-0797e4ca1041")

	assert.Assert(t, is.Len(fake.calls, 1))
	inv := fake.calls[0]
	assert.DeepEqual(t, inv.Args[:3], []string{"notarytool", "submit", "/out/NoteTaker-1.4.0.dmg"})
	assert.Equal(t, argAfter(inv.Args, "--team-id"), "ABCDE12345")
	assert.Equal(t, argAfter(inv.Args, "--output-format"), "json")
	assert.Check(t, is.Contains(inv.Args, "--wait"))
	assert.Check(t, !strings.Contains(inv.String(), "abcd-efgh-ijkl-mnop"))
}

func TestSubmitRejectedFetchesLog(t *testing.T) {
	fake := notarytool(
		func(inv exec.Invocation) (*exec.Result, error) {
			return exitWith(inv, 1, `{"id":"4ba7c420-7444-44bc-a190-1bd4bad97b13","status":"Invalid","message":"Processing complete"}`)
		},
		func(inv exec.Invocation) (*exec.Result, error) {
			return ok(rejectionLog)
		},
	)

	_, err := testNotary(fake).Submit(context.Background(), "/out/NoteTaker-1.4.0.dmg")
	assert.Assert(t, IsRejection(err))
	assert.ErrorContains(t, err, "was invalid")

	var rej *RejectionError
	assert.Assert(t, errors.As(err, &rej))
	assert.Assert(t, rej.Log != nil)
	assert.Equal(t, len(rej.Log.Issues), 1)

	d := Diagnostics(err)
	assert.Check(t, is.Contains(d, "Archive contains critical validation errors"))
	assert.Check(t, is.Contains(d, "The signature does not include a secure timestamp."))
	assert.Check(t, is.Contains(d, "(arm64)"))
	assert.Check(t, is.Contains(d, "resolving_common_notarization_issues"))

	assert.DeepEqual(t, fake.calls[1].Args[:3], []string{"notarytool", "log", "4ba7c420-7444-44bc-a190-1bd4bad97b13"})
}

func TestSubmitRejectedWithUnreadableLog(t *testing.T) {
	fake := notarytool(
		func(inv exec.Invocation) (*exec.Result, error) {
			return ok(`{"id":"job-1","status":"Rejected","message":"Processing complete"}`)
		},
		func(inv exec.Invocation) (*exec.Result, error) {
			return ok("Submission log is not available yet")
		},
	)

	_, err := testNotary(fake).Submit(context.Background(), "/out/a.dmg")
	assert.Assert(t, IsRejection(err))
	assert.Check(t, is.Contains(Diagnostics(err), "Submission log is not available yet"))
}

func TestSubmitRejectedWhenLogFails(t *testing.T) {
	fake := notarytool(
		func(inv exec.Invocation) (*exec.Result, error) {
			return ok(`{"id":"job-1","status":"Invalid","message":"Processing complete"}`)
		},
		func(inv exec.Invocation) (*exec.Result, error) {
			return fail(inv, 69, "HTTP status code: 401")
		},
	)

	_, err := testNotary(fake).Submit(context.Background(), "/out/a.dmg")
	assert.Assert(t, IsRejection(err))
	assert.Check(t, is.Contains(Diagnostics(err), "notarization log unavailable"))
}

func TestSubmitUnreadableOutput(t *testing.T) {
	fake := notarytool(
		func(inv exec.Invocation) (*exec.Result, error) {
			return fail(inv, 69, "Error: HTTP status code: 401. Invalid credentials. Username or password is incorrect.")
		},
		nil,
	)

	_, err := testNotary(fake).Submit(context.Background(), "/out/a.dmg")
	var exitErr *exec.ExitError
	assert.Assert(t, errors.As(err, &exitErr))
	assert.Check(t, !IsRejection(err))
	assert.Check(t, is.Contains(exitErr.Diagnostics(), "Invalid credentials"))
	assert.Check(t, !strings.Contains(exitErr.Diagnostics(), "abcd-efgh-ijkl-mnop"))

	fake = notarytool(func(inv exec.Invocation) (*exec.Result, error) { return ok("") }, nil)
	_, err = testNotary(fake).Submit(context.Background(), "/out/a.dmg")
	assert.ErrorContains(t, err, "unable to read notarization result")
}

func TestSubmitUnexpectedStatus(t *testing.T) {
	fake := notarytool(func(inv exec.Invocation) (*exec.Result, error) {
		return ok(`{"id":"job-1","status":"In Progress","message":"Timed out"}`)
	}, nil)

	_, err := testNotary(fake).Submit(context.Background(), "/out/a.dmg")
	assert.ErrorContains(t, err, "notarization job-1 is still in progress")

	fake = notarytool(func(inv exec.Invocation) (*exec.Result, error) {
		return ok(`{"id":"job-2","status":"Pending","message":""}`)
	}, nil)
	_, err = testNotary(fake).Submit(context.Background(), "/out/a.dmg")
	assert.ErrorContains(t, err, `unexpected status "Pending"`)
}

func TestStapleValidates(t *testing.T) {
	fake := newFakeExecutor()
	assert.NilError(t, testNotary(fake).Staple(context.Background(), "/out/a.dmg"))
	assert.DeepEqual(t, fake.calls[0].Args, []string{"stapler", "staple", "/out/a.dmg"})
	assert.DeepEqual(t, fake.calls[1].Args, []string{"stapler", "validate", "/out/a.dmg"})

	fake = newFakeExecutor()
	fake.on("xcrun stapler", func(inv exec.Invocation) (*exec.Result, error) {
		return fail(inv, 65, "CloudKit query for a.dmg failed due to \"Record not found\".")
	})
	err := testNotary(fake).Staple(context.Background(), "/out/a.dmg")
	assert.ErrorContains(t, err, "xcrun exited with status 65")
	assert.Equal(t, len(fake.calls), 1)
}
