package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SecretKeys are written to the user-wide file instead of the repository
// file so credentials are not committed by accident.
var SecretKeys = map[string]bool{
	"github.token":  true,
	"gitlab.token":  true,
	"pivotal.token": true,
	"jira.token":    true,
}

// Save writes dotted key/value pairs into the YAML file at path, keeping
// comments and keys it does not touch. With fresh set, the existing file
// content is discarded first.
func Save(path string, values map[string]string, fresh bool) error {
	doc := &yaml.Node{Kind: yaml.DocumentNode}
	if !fresh {
		data, err := os.ReadFile(path) // #nosec G304 - path is a continuity config file
		switch {
		case err == nil && len(bytes.TrimSpace(data)) > 0:
			if err := yaml.Unmarshal(data, doc); err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case err != nil && !os.IsNotExist(err):
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level must be a mapping", path)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := setKey(root, strings.Split(key, "."), values[key]); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_ = enc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SplitSecrets separates credential keys from the rest.
func SplitSecrets(values map[string]string) (public, secret map[string]string) {
	public, secret = map[string]string{}, map[string]string{}
	for k, val := range values {
		if SecretKeys[k] {
			secret[k] = val
		} else {
			public[k] = val
		}
	}
	return public, secret
}

func setKey(m *yaml.Node, path []string, value string) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != path[0] {
			continue
		}
		child := m.Content[i+1]
		if len(path) == 1 {
			*child = *scalar(value)
			return nil
		}
		if child.Kind != yaml.MappingNode {
			if child.Kind == yaml.ScalarNode && child.Value == "" {
				*child = yaml.Node{Kind: yaml.MappingNode}
			} else {
				return fmt.Errorf("%s is not a mapping", path[0])
			}
		}
		return setKey(child, path[1:], value)
	}

	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path[0]}
	if len(path) == 1 {
		m.Content = append(m.Content, key, scalar(value))
		return nil
	}
	child := &yaml.Node{Kind: yaml.MappingNode}
	m.Content = append(m.Content, key, child)
	return setKey(child, path[1:], value)
}

// scalar types value the way a person would write it by hand.
func scalar(value string) *yaml.Node {
	tag := "!!str"
	switch lower := strings.ToLower(value); {
	case lower == "true" || lower == "false":
		tag, value = "!!bool", lower
	case isNumeric(value):
		tag = "!!int"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func isNumeric(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
