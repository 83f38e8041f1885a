package pkg

import (
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/exec"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	stagingPattern   = ".dmg-staging-*"
	applicationsLink = "Applications"
	applicationsDir  = "/Applications"
)

// Packager builds a compressed disk image holding an application bundle and a link to
// the system applications folder.
type Packager struct {
	Executor exec.Executor
	Output   io.Writer
}

// Package replaces imagePath with a fresh image. The staging directory is removed
// whether or not the image could be built.
func (p *Packager) Package(ctx context.Context, appPath, imagePath, volumeName string) error {
	if err := removeIfExists(imagePath); err != nil {
		return fmt.Errorf("unable to remove previous image: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(imagePath), 0o755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	staging, err := os.MkdirTemp(filepath.Dir(imagePath), stagingPattern)
	if err != nil {
		return fmt.Errorf("unable to create staging directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", staging).Msg("unable to remove staging directory")
		}
	}()

	// -- ditto keeps the extended attributes the code signature depends on
	if _, err := p.Executor.Run(ctx, exec.Invocation{
		Tool:   "ditto",
		Args:   []string{appPath, filepath.Join(staging, filepath.Base(appPath))},
		Output: p.Output,
	}); err != nil {
		return err
	}

	if err := os.Symlink(applicationsDir, filepath.Join(staging, applicationsLink)); err != nil {
		return fmt.Errorf("unable to link applications folder: %w", err)
	}

	if _, err := p.Executor.Run(ctx, exec.Invocation{
		Tool: "hdiutil",
		Args: []string{
			"create",
			"-volname", volumeName,
			"-srcfolder", staging,
			"-ov",
			"-format", "UDZO",
			imagePath,
		},
		Output: p.Output,
	}); err != nil {
		return err
	}

	return requireFile(imagePath)
}

func removeIfExists(path string) error {
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &PostconditionError{Path: path}
	}
	if info.IsDir() {
		return &PostconditionError{Path: path, Reason: "expected a file, found a directory"}
	}
	return nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &PostconditionError{Path: path}
	}
	if !info.IsDir() {
		return &PostconditionError{Path: path, Reason: "expected a directory"}
	}
	return nil
}
