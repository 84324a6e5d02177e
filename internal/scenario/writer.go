package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Write stores doc as YAML at path.
func Write(doc *Document, path string) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read parses the YAML document at path.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func Marshal(doc *Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("parse scenario: missing version")
	}
	return &doc, nil
}
