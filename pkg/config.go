package pkg

import (
	"fmt"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"path/filepath"
	"strings"
)

// EnvKeyReplacer maps nested keys such as project.name onto PREFIX_PROJECT_NAME.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

const (
	DefaultOutputDir = "build/release"
	DefaultIdentity  = "Developer ID Application"
)

type Config struct {
	TeamID      string `mapstructure:"team_id"`
	AppleID     string `mapstructure:"apple_id"`
	AppPassword string `mapstructure:"app_password"`

	Version   string `mapstructure:"version"`
	Build     string `mapstructure:"build"`
	OutputDir string `mapstructure:"output_dir"`

	Project   ProjectConfig `mapstructure:"project"`
	Signing   SigningConfig `mapstructure:"signing"`
	Formatter string        `mapstructure:"formatter"`
	Verbose   bool          `mapstructure:"verbose"`
	Publish   PublishConfig `mapstructure:"publish"`
}

type ProjectConfig struct {
	Dir           string `mapstructure:"dir"`
	Spec          string `mapstructure:"spec"`
	Name          string `mapstructure:"name"`
	Scheme        string `mapstructure:"scheme"`
	AppName       string `mapstructure:"app_name"`
	Configuration string `mapstructure:"configuration"`
}

type SigningConfig struct {
	Identity string `mapstructure:"identity"`
}

type PublishConfig struct {
	Url          string `mapstructure:"url"`
	Jwt          string `mapstructure:"jwt"`
	Seed         string `mapstructure:"seed"`
	KvBucket     string `mapstructure:"kv_bucket"`
	ObjectBucket string `mapstructure:"object_bucket"`
	Prefix       string `mapstructure:"prefix"`
}

func (p PublishConfig) Enabled() bool {
	return strings.TrimSpace(p.Url) != ""
}

// SetDefaults registers every configuration key so that environment variables are
// picked up by Unmarshal even when no config file mentions the key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("team_id", "")
	v.SetDefault("apple_id", "")
	v.SetDefault("app_password", "")
	v.SetDefault("version", "")
	v.SetDefault("build", "")
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("project.dir", ".")
	v.SetDefault("project.spec", "project.yml")
	v.SetDefault("project.name", "")
	v.SetDefault("project.scheme", "")
	v.SetDefault("project.app_name", "")
	v.SetDefault("project.configuration", "Release")
	v.SetDefault("signing.identity", DefaultIdentity)
	v.SetDefault("formatter", "auto")
	v.SetDefault("verbose", false)
	v.SetDefault("publish.url", "")
	v.SetDefault("publish.jwt", "")
	v.SetDefault("publish.seed", "")
	v.SetDefault("publish.kv_bucket", "releases")
	v.SetDefault("publish.object_bucket", "release_artifacts")
	v.SetDefault("publish.prefix", "macrelease")
}

// BindLegacyEnv binds the credential keys to the environment names commonly used by
// release scripts in addition to the MACRELEASE_ prefixed ones.
func BindLegacyEnv(v *viper.Viper, prefix string) error {
	bindings := map[string]string{
		"team_id":      "APPLE_TEAM_ID",
		"apple_id":     "APPLE_ID",
		"app_password": "APPLE_APP_PASSWORD",
	}
	for key, legacy := range bindings {
		env := strings.ToUpper(prefix + "_" + key)
		if err := v.BindEnv(key, env, legacy); err != nil {
			return fmt.Errorf("unable to bind %s: %w", key, err)
		}
	}
	return nil
}

func LoadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode configuration: %w", err)
	}

	cfg.Project = cfg.Project.withDefaults()
	if strings.TrimSpace(cfg.OutputDir) == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if strings.TrimSpace(cfg.Signing.Identity) == "" {
		cfg.Signing.Identity = DefaultIdentity
	}
	return cfg, nil
}

// withDefaults derives the project, scheme and app names from each other so that a
// single name is enough for the common single target project.
func (p ProjectConfig) withDefaults() ProjectConfig {
	if p.Dir == "" {
		p.Dir = "."
	}
	if p.Spec == "" {
		p.Spec = "project.yml"
	}
	if p.Configuration == "" {
		p.Configuration = "Release"
	}
	if p.Name == "" {
		p.Name = firstNonEmpty(p.Scheme, p.AppName)
	}
	if p.Scheme == "" {
		p.Scheme = p.Name
	}
	if p.AppName == "" {
		p.AppName = p.Scheme
	}
	return p
}

func (p ProjectConfig) SpecPath() string {
	if filepath.IsAbs(p.Spec) {
		return p.Spec
	}
	return filepath.Join(p.Dir, p.Spec)
}

func (p ProjectConfig) ProjectPath() string {
	return filepath.Join(p.Dir, p.Name+".xcodeproj")
}

// Validate reports every missing or invalid field in one pass. It never stops at the
// first problem.
func (c Config) Validate() []Problem {
	var problems []Problem

	required := []struct {
		field string
		value string
	}{
		{"team_id", c.TeamID},
		{"apple_id", c.AppleID},
		{"app_password", c.AppPassword},
		{"project.name", c.Project.Name},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, Problem{Kind: MissingField, Subject: r.field})
		}
	}

	if strings.TrimSpace(c.Build) != "" {
		if _, err := ParseBuild(c.Build); err != nil {
			problems = append(problems, Problem{Kind: InvalidField, Subject: "build", Detail: err.Error()})
		}
	}

	if strings.ContainsAny(c.Version, " /") {
		problems = append(problems, Problem{Kind: InvalidField, Subject: "version", Detail: fmt.Sprintf("%q must not contain spaces or slashes", c.Version)})
	}

	return problems
}

// ParseBuild parses a build number. Build numbers are non-negative integers written
// with decimal digits only.
func ParseBuild(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("build number %s must not be negative", s)
	}

	// -- cast honours base prefixes, a zero padded build number must not be read as octal
	if digits := strings.TrimLeft(s, "0"); digits != s {
		s = digits
		if s == "" {
			s = "0"
		}
	}

	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, fmt.Errorf("%q is not a build number", raw)
	}

	n, err := cast.ToIntE(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a build number", raw)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
