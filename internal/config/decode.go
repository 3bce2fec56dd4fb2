package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

type format string

const (
	formatJSON format = "json"
	formatYAML format = "yaml"
)

// detectFormat picks the decoder from the extension, falling back to
// content: a document starting with '{' is JSON, anything else YAML.
func detectFormat(path string, b []byte) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	}
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '{' {
		return formatJSON
	}
	return formatYAML
}

// decode applies the document in b onto cfg. YAML is converted to JSON first
// so both formats share the strict decoder and its unknown-key check.
func decode(path string, b []byte, cfg *Config) error {
	f := detectFormat(path, b)
	if f == formatYAML {
		var err error
		if b, err = yamlToJSON(b); err != nil {
			return fmt.Errorf("yaml config %s: %w", path, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%s config %s: %w", f, path, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%s config %s: unexpected data after document", f, path)
	}
	return nil
}

func yamlToJSON(b []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(stringKeys(doc))
}

// stringKeys rewrites map[any]any nodes, which encoding/json rejects.
func stringKeys(node any) any {
	switch n := node.(type) {
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[fmt.Sprint(k)] = stringKeys(v)
		}
		return out
	case map[string]any:
		for k, v := range n {
			n[k] = stringKeys(v)
		}
		return n
	case []any:
		for i, v := range n {
			n[i] = stringKeys(v)
		}
		return n
	default:
		return node
	}
}
