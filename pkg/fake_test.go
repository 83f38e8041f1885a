package pkg

import (
	"context"
	"fmt"
	"github.com/shono-io/macrelease/exec"
	"howett.net/plist"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fakeExecutor records invocations and dispatches them to handlers keyed by
// "<tool> <first arg>" or "<tool>".
type fakeExecutor struct {
	calls    []exec.Invocation
	handlers map[string]func(inv exec.Invocation) (*exec.Result, error)
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{handlers: map[string]func(inv exec.Invocation) (*exec.Result, error){}}
}

func (f *fakeExecutor) on(key string, h func(inv exec.Invocation) (*exec.Result, error)) {
	f.handlers[key] = h
}

func (f *fakeExecutor) Run(_ context.Context, inv exec.Invocation) (*exec.Result, error) {
	f.calls = append(f.calls, inv)

	var keys []string
	if len(inv.Args) > 0 {
		keys = append(keys, inv.Tool+" "+inv.Args[0])
	}
	keys = append(keys, inv.Tool)

	for _, k := range keys {
		if h, found := f.handlers[k]; found {
			return h(inv)
		}
	}
	return &exec.Result{}, nil
}

func (f *fakeExecutor) keys() []string {
	var result []string
	for _, c := range f.calls {
		k := c.Tool
		if len(c.Args) > 0 {
			k += " " + c.Args[0]
		}
		result = append(result, k)
	}
	return result
}

// ok succeeds with stdout unless the handler's own file work failed.
func ok(stdout string, errs ...error) (*exec.Result, error) {
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &exec.Result{Stdout: []byte(stdout)}, nil
}

func fail(inv exec.Invocation, code int, stderr string) (*exec.Result, error) {
	res := &exec.Result{ExitCode: code, Stderr: []byte(stderr)}
	return res, &exec.ExitError{Invocation: inv, Result: res}
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// fakeToolchain simulates every tool of a successful release. The exported bundle
// carries whatever version is stamped in the metadata at export time.
func fakeToolchain(cfg Config) *fakeExecutor {
	f := newFakeExecutor()

	f.on("xcodegen generate", func(inv exec.Invocation) (*exec.Result, error) {
		return ok("", os.MkdirAll(filepath.Join(argAfter(inv.Args, "--project"), cfg.Project.Name+".xcodeproj"), 0o755))
	})
	f.on("xcodebuild archive", func(inv exec.Invocation) (*exec.Result, error) {
		return ok("** ARCHIVE SUCCEEDED **", os.MkdirAll(argAfter(inv.Args, "-archivePath"), 0o755))
	})
	f.on("xcodebuild -exportArchive", func(inv exec.Invocation) (*exec.Result, error) {
		m, err := LoadMetadata(cfg.Project.SpecPath())
		if err != nil {
			return nil, err
		}
		v, err := m.Current()
		if err != nil {
			return nil, err
		}

		contents := filepath.Join(argAfter(inv.Args, "-exportPath"), cfg.Project.AppName+".app", "Contents")
		if err := os.MkdirAll(contents, 0o755); err != nil {
			return nil, err
		}
		b, err := plist.Marshal(bundleInfo{ShortVersion: v.Version, Version: fmt.Sprintf("%d", v.Build)}, plist.XMLFormat)
		if err != nil {
			return nil, err
		}
		return ok("** EXPORT SUCCEEDED **", os.WriteFile(filepath.Join(contents, "Info.plist"), b, 0o644))
	})
	f.on("ditto", func(inv exec.Invocation) (*exec.Result, error) {
		return ok("", os.MkdirAll(inv.Args[1], 0o755))
	})
	f.on("hdiutil create", func(inv exec.Invocation) (*exec.Result, error) {
		entries, err := os.ReadDir(argAfter(inv.Args, "-srcfolder"))
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		out := inv.Args[len(inv.Args)-1]
		return ok("created: "+out, os.WriteFile(out, []byte("image:"+strings.Join(names, ",")), 0o644))
	})
	f.on("xcrun notarytool", func(inv exec.Invocation) (*exec.Result, error) {
		return ok(`{"message":"Processing complete","id":"2efe2717-52ef-43a5-96dc-0797e4ca1041","status":"Accepted"}`)
	})
	f.on("xcrun stapler", func(inv exec.Invocation) (*exec.Result, error) {
		if inv.Args[1] != "staple" {
			return ok("The validate action worked!")
		}
		path := inv.Args[2]
		fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		_, err = fh.WriteString("+ticket")
		return ok("The staple and validate action worked!", err)
	})

	return f
}

type mapFinder map[string]bool

func (m mapFinder) Find(_ context.Context, tool string) (string, error) {
	if m[tool] {
		return "/usr/bin/" + tool, nil
	}
	return "", fmt.Errorf("%s not found", tool)
}

func allTools() mapFinder {
	m := mapFinder{}
	for _, t := range RequiredTools {
		m[t] = true
	}
	return m
}

type fakeIdentities struct {
	ids   []Identity
	err   error
	calls int
}

func (f *fakeIdentities) Identities(context.Context) ([]Identity, error) {
	f.calls++
	return f.ids, f.err
}

func developerID(team string) *fakeIdentities {
	return &fakeIdentities{ids: []Identity{{
		Hash: "0123456789ABCDEF0123456789ABCDEF01234567",
		Name: "Developer ID Application: Jane Appleseed (" + team + ")",
	}}}
}
