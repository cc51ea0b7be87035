package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the layout of a schema file
type Document struct {
	Models     []*Model `yaml:"models"`
	Components []*Model `yaml:"components"`
}

// Parse decodes a schema document. Component entries default to the component namespace.
func Parse(data []byte) ([]*Model, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	out := make([]*Model, 0, len(doc.Models)+len(doc.Components))
	for _, m := range doc.Models {
		if m.Namespace == "" {
			m.Namespace = NamespaceAPI
		}
		out = append(out, m)
	}
	for _, c := range doc.Components {
		c.Namespace = NamespaceComponent
		out = append(out, c)
	}
	return out, nil
}

// LoadFile reads the models declared in a single YAML file
func LoadFile(path string) ([]*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	models, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return models, nil
}

// LoadDir reads every .yaml/.yml file under dir, in lexical order
func LoadDir(dir string) ([]*Model, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk schema dir %s: %w", dir, err)
	}
	sort.Strings(files)

	var models []*Model
	for _, f := range files {
		m, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		models = append(models, m...)
	}
	return models, nil
}

// Load reads a schema file or directory
func Load(path string) ([]*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat schema path: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}
