package pkg

import (
	"github.com/shono-io/macrelease/sdk"
	"strings"
)

// Resolve computes the version to stamp. An explicit override always wins; without
// one the version is kept and the build number is incremented by one.
func Resolve(current sdk.Version, versionOverride, buildOverride string) (sdk.Version, error) {
	result := sdk.Version{Version: current.Version, Build: current.Build + 1}

	if v := strings.TrimSpace(versionOverride); v != "" {
		result.Version = v
	}

	if b := strings.TrimSpace(buildOverride); b != "" {
		build, err := ParseBuild(b)
		if err != nil {
			return sdk.Version{}, err
		}
		result.Build = build
	}

	return result, nil
}
