package exec

import (
	"bytes"
	"context"
	"fmt"
	osexec "os/exec"
)

type Finder interface {
	Find(ctx context.Context, tool string) (string, error)
}

// NewLocalFinder looks tools up on PATH. Tools listed in xcrunTools live inside the
// active developer directory and are resolved through `xcrun --find`.
func NewLocalFinder(xcrunTools ...string) Finder {
	f := &localFinder{xcrun: map[string]bool{}}
	for _, t := range xcrunTools {
		f.xcrun[t] = true
	}
	return f
}

type localFinder struct {
	xcrun map[string]bool
}

func (f *localFinder) Find(ctx context.Context, tool string) (string, error) {
	if !f.xcrun[tool] {
		return osexec.LookPath(tool)
	}

	xcrun, err := osexec.LookPath("xcrun")
	if err != nil {
		return "", err
	}

	out, err := osexec.CommandContext(ctx, xcrun, "--find", tool).Output()
	if err != nil {
		return "", fmt.Errorf("xcrun cannot find %s: %w", tool, err)
	}

	return string(bytes.TrimSpace(out)), nil
}

// FormatterFor picks the output formatter named by mode. "auto" uses xcbeautify or
// xcpretty when installed and raw output otherwise.
func FormatterFor(ctx context.Context, f Finder, mode string) (Formatter, error) {
	switch mode {
	case "", "raw":
		return Raw{}, nil
	case "auto":
		for _, name := range []string{"xcbeautify", "xcpretty"} {
			if path, err := f.Find(ctx, name); err == nil {
				return Pipe{Path: path}, nil
			}
		}
		return Raw{}, nil
	case "xcbeautify", "xcpretty":
		path, err := f.Find(ctx, mode)
		if err != nil {
			return nil, fmt.Errorf("formatter %s is not installed: %w", mode, err)
		}
		return Pipe{Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown formatter: %s", mode)
	}
}
