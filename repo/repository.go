package repo

import (
	"context"
	"fmt"
	"github.com/shono-io/macrelease/sdk"
	"io"
	"path"
	"strings"
)

type (
	Config struct {
		KeyValueBucket    string
		ObjectStoreBucket string
		Prefix            string
	}

	// Repository records published releases and stores their artifacts.
	Repository interface {
		Publish(ctx context.Context, rel sdk.Release, artifact io.Reader) error
		List(ctx context.Context) ([]sdk.Release, error)
		Close() error
	}
)

// ReleaseKey is the key value entry of a release. Keys use dots as token separators so
// the version is flattened.
func ReleaseKey(prefix string, version string, build int) string {
	return fmt.Sprintf("%s.release.%s.build.%d", prefix, keyToken(version), build)
}

func releaseKeyPrefix(prefix string) string {
	return prefix + ".release."
}

// ObjectName is the object store name of a release artifact.
func ObjectName(prefix string, version string, file string) string {
	return path.Join(prefix, version, path.Base(file))
}

func keyToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		case r == '.':
			return '_'
		default:
			return '-'
		}
	}, s)
}
