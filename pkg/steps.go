package pkg

import (
	"context"
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/exec"
	"github.com/shono-io/macrelease/sdk"
	"howett.net/plist"
	"os"
	"path/filepath"
)

// Steps returns the release steps in execution order. Each step consumes what the
// previous ones produced.
func (r *Releaser) Steps() []Step {
	steps := []Step{
		{Label: "stamp version", Run: r.stampVersion},
		{Label: "generate project", Run: r.generateProject},
		{Label: "archive", Run: r.archive},
		{Label: "export", Run: r.export},
		{Label: "package", Run: r.packageImage},
		{Label: "notarize", Run: r.notarize},
		{Label: "staple", Run: r.staple},
		{Label: "checksum", Run: r.checksum},
	}
	if r.cfg.Publish.Enabled() {
		steps = append(steps, Step{Label: "publish", Run: r.publish})
	}
	return steps
}

func (r *Releaser) stampVersion(_ context.Context, st *State) error {
	m, err := LoadMetadata(st.MetadataPath)
	if err != nil {
		return err
	}

	next, err := Resolve(st.Current, r.cfg.Version, r.cfg.Build)
	if err != nil {
		return err
	}

	m.Stamp(next)
	if err := m.Save(); err != nil {
		return err
	}

	st.Version = next
	log.Info().Str("file", m.Path()).Str("from", st.Current.String()).Str("to", next.String()).Msg("version stamped")
	return nil
}

func (r *Releaser) generateProject(ctx context.Context, st *State) error {
	p := r.cfg.Project
	if _, err := r.executor.Run(ctx, exec.Invocation{
		Tool:   "xcodegen",
		Args:   []string{"generate", "--spec", p.SpecPath(), "--project", p.Dir},
		Dir:    p.Dir,
		Output: r.output,
	}); err != nil {
		return err
	}

	if err := requireDir(p.ProjectPath()); err != nil {
		return err
	}

	st.ProjectPath = p.ProjectPath()
	return nil
}

func (r *Releaser) archive(ctx context.Context, st *State) error {
	p := r.cfg.Project
	archive := r.archivePath()

	// -- a stale archive would satisfy the post-condition even if this build failed to write one
	if err := removeIfExists(archive); err != nil {
		return fmt.Errorf("unable to remove previous archive: %w", err)
	}

	if _, err := r.executor.Run(ctx, exec.Invocation{
		Tool: "xcodebuild",
		Args: []string{
			"archive",
			"-project", st.ProjectPath,
			"-scheme", p.Scheme,
			"-configuration", p.Configuration,
			"-destination", "generic/platform=macOS",
			"-archivePath", archive,
			"DEVELOPMENT_TEAM=" + r.cfg.TeamID,
			"CODE_SIGN_STYLE=Manual",
			"CODE_SIGN_IDENTITY=" + r.cfg.Signing.Identity,
			"OTHER_CODE_SIGN_FLAGS=--timestamp",
		},
		Dir:       p.Dir,
		Formatted: true,
		Output:    r.output,
	}); err != nil {
		return err
	}

	if err := requireDir(archive); err != nil {
		return err
	}

	st.ArchivePath = archive
	return nil
}

type exportOptions struct {
	Method             string `plist:"method"`
	TeamID             string `plist:"teamID"`
	SigningStyle       string `plist:"signingStyle"`
	SigningCertificate string `plist:"signingCertificate"`
	Destination        string `plist:"destination"`
}

type bundleInfo struct {
	ShortVersion string `plist:"CFBundleShortVersionString"`
	Version      string `plist:"CFBundleVersion"`
}

// WriteExportOptions writes the export options descriptor for a Developer ID export.
func WriteExportOptions(path string, teamID string, identity string) error {
	b, err := plist.MarshalIndent(exportOptions{
		Method:             "developer-id",
		TeamID:             teamID,
		SigningStyle:       "manual",
		SigningCertificate: identity,
		Destination:        "export",
	}, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("unable to encode export options: %w", err)
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("unable to write export options: %w", err)
	}
	return nil
}

func (r *Releaser) export(ctx context.Context, st *State) error {
	if err := os.MkdirAll(r.outputDir(), 0o755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	options := r.exportOptionsPath()
	if err := WriteExportOptions(options, r.cfg.TeamID, r.cfg.Signing.Identity); err != nil {
		return err
	}
	st.ExportOptions = options

	dir := r.exportDir()
	if err := removeIfExists(dir); err != nil {
		return fmt.Errorf("unable to remove previous export: %w", err)
	}

	if _, err := r.executor.Run(ctx, exec.Invocation{
		Tool: "xcodebuild",
		Args: []string{
			"-exportArchive",
			"-archivePath", st.ArchivePath,
			"-exportPath", dir,
			"-exportOptionsPlist", options,
		},
		Dir:       r.cfg.Project.Dir,
		Formatted: true,
		Output:    r.output,
	}); err != nil {
		return err
	}

	app := r.appPath()
	if err := checkBundle(app, st.Version); err != nil {
		return err
	}

	st.ExportDir = dir
	st.AppPath = app
	return nil
}

// checkBundle verifies that the exported bundle exists and carries the stamped version.
func checkBundle(app string, v sdk.Version) error {
	if err := requireDir(app); err != nil {
		return err
	}

	infoPath := filepath.Join(app, "Contents", "Info.plist")
	b, err := os.ReadFile(infoPath)
	if err != nil {
		return &PostconditionError{Path: infoPath}
	}

	var info bundleInfo
	if _, err := plist.Unmarshal(b, &info); err != nil {
		return &PostconditionError{Path: infoPath, Reason: err.Error()}
	}

	if info.ShortVersion != v.Version || info.Version != fmt.Sprintf("%d", v.Build) {
		return &PostconditionError{
			Path:   infoPath,
			Reason: fmt.Sprintf("bundle is %s (%s), expected %s", info.ShortVersion, info.Version, v),
		}
	}
	return nil
}

func (r *Releaser) packageImage(ctx context.Context, st *State) error {
	image := r.imagePath(st.Version)
	p := &Packager{Executor: r.executor, Output: r.output}
	if err := p.Package(ctx, st.AppPath, image, r.cfg.Project.AppName); err != nil {
		return err
	}

	st.ImagePath = image
	return nil
}

func (r *Releaser) notary() *Notary {
	return &Notary{
		Executor: r.executor,
		AppleID:  r.cfg.AppleID,
		TeamID:   r.cfg.TeamID,
		Password: r.cfg.AppPassword,
	}
}

func (r *Releaser) notarize(ctx context.Context, st *State) error {
	sub, err := r.notary().Submit(ctx, st.ImagePath)
	if err != nil {
		return err
	}

	st.SubmissionID = sub.ID
	return nil
}

func (r *Releaser) staple(ctx context.Context, st *State) error {
	return r.notary().Staple(ctx, st.ImagePath)
}

// checksum runs after stapling because stapling rewrites the image.
func (r *Releaser) checksum(_ context.Context, st *State) error {
	sum, size, err := Checksum(st.ImagePath)
	if err != nil {
		return err
	}

	st.SHA256 = sum
	st.Size = size
	return nil
}

func (r *Releaser) publish(ctx context.Context, st *State) error {
	if r.repository == nil {
		return fmt.Errorf("no release repository configured for %s", r.cfg.Publish.Url)
	}

	f, err := os.Open(st.ImagePath)
	if err != nil {
		return fmt.Errorf("unable to open artifact: %w", err)
	}
	defer f.Close()

	return r.repository.Publish(ctx, sdk.Release{
		App:         r.cfg.Project.AppName,
		Version:     st.Version.Version,
		Build:       st.Version.Build,
		Artifact:    filepath.Base(st.ImagePath),
		Size:        st.Size,
		SHA256:      st.SHA256,
		Submission:  st.SubmissionID,
		PublishedAt: r.now().UTC(),
	}, f)
}
