package nats

import (
	"github.com/nats-io/nats.go"
	"strings"
)

const (
	UrlEnvVar  = "NATS_URL"
	JwtEnvVar  = "NATS_JWT"
	SeedEnvVar = "NATS_SEED"
)

// Options returns the connection options for a named client. Credentials are only used
// when both the jwt and the seed are given.
func Options(name string, jwt string, seed string) []nats.Option {
	opts := []nats.Option{
		nats.Name(name),
	}

	if strings.TrimSpace(jwt) != "" && strings.TrimSpace(seed) != "" {
		opts = append(opts, nats.UserJWTAndSeed(jwt, seed))
	}

	return opts
}

func Connect(url string, name string, jwt string, seed string) (*nats.Conn, error) {
	if strings.TrimSpace(url) == "" {
		url = nats.DefaultURL
	}
	return nats.Connect(url, Options(name, jwt, seed)...)
}
