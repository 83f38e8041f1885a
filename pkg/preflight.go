package pkg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/shono-io/macrelease/exec"
	"go.uber.org/multierr"
	"regexp"
	"strings"
)

// RequiredTools are looked up before a run. notarytool and stapler are resolved through xcrun.
var RequiredTools = []string{"xcodegen", "xcodebuild", "ditto", "hdiutil", "xcrun", "notarytool", "stapler", "security"}

// XcrunTools live in the active developer directory rather than on PATH.
var XcrunTools = []string{"notarytool", "stapler"}

type Identity struct {
	Hash string
	Name string
}

type IdentityStore interface {
	Identities(ctx context.Context) ([]Identity, error)
}

// NewKeychain lists code signing identities with the security tool.
func NewKeychain(e exec.Executor) IdentityStore {
	return &keychain{executor: e}
}

type keychain struct {
	executor exec.Executor
}

func (k *keychain) Identities(ctx context.Context) ([]Identity, error) {
	res, err := k.executor.Run(ctx, exec.Invocation{
		Tool: "security",
		Args: []string{"find-identity", "-v", "-p", "codesigning"},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list signing identities: %w", err)
	}
	return ParseIdentities(res.Stdout), nil
}

var identityLine = regexp.MustCompile(`^\s*\d+\)\s+([0-9A-Fa-f]{40})\s+"(.+)"`)

// ParseIdentities reads the output of `security find-identity -v`.
func ParseIdentities(out []byte) []Identity {
	var result []Identity
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := identityLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		result = append(result, Identity{Hash: m[1], Name: m[2]})
	}
	return result
}

// MatchIdentity finds an identity of the requested kind issued to the team.
func MatchIdentity(ids []Identity, prefix, teamID string) (Identity, bool) {
	for _, id := range ids {
		if !strings.HasPrefix(id.Name, prefix) {
			continue
		}
		if teamID != "" && !strings.Contains(id.Name, "("+teamID+")") {
			continue
		}
		return id, true
	}
	return Identity{}, false
}

type Preflight struct {
	Finder     exec.Finder
	Identities IdentityStore
	Tools      []string
}

// Check runs every precondition check and reports all violations at once. Field,
// tool and identity problems are reported independently.
func (p *Preflight) Check(ctx context.Context, cfg Config) error {
	var err error
	for _, problem := range cfg.Validate() {
		err = multierr.Append(err, problem)
	}

	tools := p.Tools
	if tools == nil {
		tools = RequiredTools
	}

	missing := map[string]bool{}
	for _, tool := range tools {
		path, findErr := p.Finder.Find(ctx, tool)
		if findErr != nil {
			missing[tool] = true
			err = multierr.Append(err, Problem{Kind: MissingTool, Subject: tool})
			continue
		}
		log.Debug().Str("tool", tool).Str("path", path).Msg("tool found")
	}

	if !missing["security"] {
		err = multierr.Append(err, p.checkIdentity(ctx, cfg))
	}

	return asPreconditionError(err)
}

func (p *Preflight) checkIdentity(ctx context.Context, cfg Config) error {
	subject := fmt.Sprintf("%q", cfg.Signing.Identity)
	if cfg.TeamID != "" {
		subject = fmt.Sprintf("%q for team %s", cfg.Signing.Identity, cfg.TeamID)
	}

	ids, err := p.Identities.Identities(ctx)
	if err != nil {
		return Problem{Kind: MissingIdentity, Subject: subject, Detail: err.Error()}
	}

	id, ok := MatchIdentity(ids, cfg.Signing.Identity, cfg.TeamID)
	if !ok {
		return Problem{Kind: MissingIdentity, Subject: subject}
	}

	log.Debug().Str("identity", id.Name).Str("hash", id.Hash).Msg("signing identity found")
	return nil
}

// asPreconditionError keeps a nil *PreconditionError from turning into a non-nil error.
func asPreconditionError(err error) error {
	if pe := newPreconditionError(err); pe != nil {
		return pe
	}
	return nil
}
