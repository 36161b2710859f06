package diff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind tags a file path with the diff strategy it supports. The tag is
// resolved once per path instead of inspecting content at apply time.
type Kind int

const (
	KindPlainText Kind = iota
	KindStructured
)

// Registry maps file extensions to kinds. Defaults cover the usual
// storefront view-source extensions and can be replaced from a YAML
// file at boot.
type Registry struct {
	structured map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{structured: map[string]bool{
		".html":   true,
		".htm":    true,
		".liquid": true,
		".tpl":    true,
		".vue":    true,
	}}
}

type registryFile struct {
	StructuredExtensions []string `yaml:"structured_extensions"`
}

// LoadRegistryFile replaces the structured-extension set with the one
// in the YAML file at path.
func (r *Registry) LoadRegistryFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file kind config: %w", err)
	}
	var cfg registryFile
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse file kind config: %w", err)
	}
	structured := make(map[string]bool, len(cfg.StructuredExtensions))
	for _, ext := range cfg.StructuredExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		structured[ext] = true
	}
	r.structured = structured
	return nil
}

func (r *Registry) KindForPath(path string) Kind {
	if r.structured[strings.ToLower(filepath.Ext(path))] {
		return KindStructured
	}
	return KindPlainText
}
