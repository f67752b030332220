package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the decoder for a serialized knowledge base.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Source produces a validated knowledge base.
type Source interface {
	Load(ctx context.Context) (*KnowledgeBase, error)
}

// Decode reads a knowledge base document and validates it.
func Decode(r io.Reader, format Format) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&kb); err != nil {
			return nil, fmt.Errorf("failed to decode yaml knowledge base: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&kb); err != nil {
			return nil, fmt.Errorf("failed to decode json knowledge base: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported knowledge base format %q", format)
	}

	if err := Validate(&kb); err != nil {
		return nil, err
	}
	return &kb, nil
}

// FileSource loads a JSON or YAML knowledge base from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (*KnowledgeBase, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("knowledge base file not found at %s: %w", s.Path, err)
	}
	defer f.Close()

	kb, err := Decode(f, FormatFromPath(s.Path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return kb, nil
}

// BytesSource decodes an in-memory document, typically an embedded default.
type BytesSource struct {
	Data   []byte
	Format Format
}

func (s BytesSource) Load(ctx context.Context) (*KnowledgeBase, error) {
	return Decode(bytes.NewReader(s.Data), s.Format)
}
