package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common errors for route table loading.
var (
	ErrFileNotFound = errors.New("route file not found")
	ErrInvalidJSON  = errors.New("invalid JSON syntax")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrEmptyFile    = errors.New("route file is empty")
)

// RouteFile is the on-disk representation of a route table.
type RouteFile struct {
	Version string      `yaml:"version,omitempty" json:"version,omitempty"`
	Routes  []HTTPRoute `yaml:"routes" json:"routes"`
}

// Validate checks every route in the file.
func (f *RouteFile) Validate() error {
	if len(f.Routes) == 0 {
		return errors.New("route file declares no routes")
	}
	for i := range f.Routes {
		if err := f.Routes[i].validate(); err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
	}
	return nil
}

// LoadRoutesFromFile reads a route table from a JSON or YAML file. The
// format is auto-detected based on file extension (.yaml, .yml for YAML,
// otherwise JSON). Returns wrapped errors for common failure cases.
func LoadRoutesFromFile(path string) ([]HTTPRoute, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return ParseYAML(data)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("%w in file: %s", ErrInvalidJSON, path)
	}
	return ParseJSON(data)
}

// ParseJSON parses JSON bytes into a route table with validation.
func ParseJSON(data []byte) ([]HTTPRoute, error) {
	var file RouteFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return file.Routes, nil
}

// ParseYAML parses YAML bytes into a route table with validation.
func ParseYAML(data []byte) ([]HTTPRoute, error) {
	var file RouteFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return file.Routes, nil
}
