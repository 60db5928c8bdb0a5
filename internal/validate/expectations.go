package validate

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadExpectations reads expectation rules from a file.
//
// Markdown and text files yield every non-blank line, trimmed. YAML files may hold
// a list of strings, an "expectations" list, or sections mapping to lists.
func LoadExpectations(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLExpectations(data)
	default:
		return parseLines(string(data)), nil
	}
}

func parseLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseYAMLExpectations(data []byte) ([]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse expectations: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("parse expectations: %w", err)
		}
		return list, nil
	case yaml.MappingNode:
		var out []string
		for i := 0; i+1 < len(root.Content); i += 2 {
			key, value := root.Content[i], root.Content[i+1]

			var list []string
			if err := value.Decode(&list); err != nil {
				return nil, fmt.Errorf("parse expectations section %q: %w", key.Value, err)
			}
			if key.Value == "expectations" {
				out = append(out, list...)
				continue
			}
			for _, item := range list {
				out = append(out, key.Value+": "+item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parse expectations: unexpected %s document", kindName(root.Kind))
	}
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "yaml"
	}
}

//go:embed templates/expectations.md
var expectationsTemplate string

// ScaffoldExpectations writes the default expectations file unless one exists.
// It reports whether a file was written.
func ScaffoldExpectations(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}

	content := fmt.Sprintf(expectationsTemplate, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
