package pkg

import (
	"bytes"
	"fmt"
	"github.com/shono-io/macrelease/sdk"
	"gopkg.in/yaml.v3"
	"os"
)

const (
	VersionKey = "MARKETING_VERSION"
	BuildKey   = "CURRENT_PROJECT_VERSION"
)

// Metadata is the XcodeGen project spec holding the version and build settings. The
// document is edited as a node tree so comments and layout survive a rewrite.
type Metadata struct {
	path string
	doc  yaml.Node
	mode os.FileMode
}

func LoadMetadata(path string) (*Metadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read project metadata: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to stat project metadata: %w", err)
	}

	m := &Metadata{path: path, mode: info.Mode().Perm()}
	if err := yaml.Unmarshal(b, &m.doc); err != nil {
		return nil, fmt.Errorf("unable to parse project metadata %s: %w", path, err)
	}
	return m, nil
}

func (m *Metadata) Path() string {
	return m.path
}

// Current returns the first version and build settings found in the document.
func (m *Metadata) Current() (sdk.Version, error) {
	versions := m.values(VersionKey)
	if len(versions) == 0 {
		return sdk.Version{}, fmt.Errorf("%s has no %s setting", m.path, VersionKey)
	}

	builds := m.values(BuildKey)
	if len(builds) == 0 {
		return sdk.Version{}, fmt.Errorf("%s has no %s setting", m.path, BuildKey)
	}

	build, err := ParseBuild(builds[0].Value)
	if err != nil {
		return sdk.Version{}, fmt.Errorf("%s has an unusable %s: %w", m.path, BuildKey, err)
	}

	return sdk.Version{Version: versions[0].Value, Build: build}, nil
}

// Stamp sets every version and build setting in the document. Nothing is written until
// Save is called.
func (m *Metadata) Stamp(v sdk.Version) {
	for _, n := range m.values(VersionKey) {
		n.Tag = "!!str"
		n.Style = yaml.DoubleQuotedStyle
		n.Value = v.Version
	}
	for _, n := range m.values(BuildKey) {
		n.Value = fmt.Sprintf("%d", v.Build)
	}
}

func (m *Metadata) Save() error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&m.doc); err != nil {
		return fmt.Errorf("unable to encode project metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to encode project metadata: %w", err)
	}

	if err := os.WriteFile(m.path, buf.Bytes(), m.mode); err != nil {
		return fmt.Errorf("unable to write project metadata: %w", err)
	}
	return nil
}

func (m *Metadata) values(key string) []*yaml.Node {
	var result []*yaml.Node
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		if n.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(n.Content); i += 2 {
				k, v := n.Content[i], n.Content[i+1]
				if k.Value == key && v.Kind == yaml.ScalarNode {
					result = append(result, v)
					continue
				}
				walk(v)
			}
			return
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(&m.doc)
	return result
}
