package limitercfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format names a supported serialization for a config file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	ErrEmptyPath         = errors.New("limitercfg: path must not be empty")
	ErrUnsupportedFormat = errors.New("limitercfg: unsupported format")
)

// Loader holds the loaded Set plus enough state to Reload it from the
// same file later (used by Watch).
type Loader struct {
	path   string
	format Format

	mu  sync.RWMutex
	set *Set
}

// Load reads path (format inferred from its extension: .yaml/.yml or
// .json) and parses it into a Set.
func Load(path string) (*Loader, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("limitercfg: read %s: %w", path, err)
	}

	set, err := parse(data, format)
	if err != nil {
		return nil, err
	}

	return &Loader{path: path, format: format, set: set}, nil
}

// Current returns the most recently loaded Set.
func (l *Loader) Current() *Set {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set
}

// Reload re-reads the underlying file and, on success, swaps in the new
// Set atomically. The previous Set remains in effect if Reload fails.
func (l *Loader) Reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("limitercfg: read %s: %w", l.path, err)
	}

	set, err := parse(data, l.format)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.set = set
	l.mu.Unlock()
	return nil
}

func detectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func parse(data []byte, format Format) (*Set, error) {
	k := koanf.New(".")

	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return nil, ErrUnsupportedFormat
	}

	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return nil, fmt.Errorf("limitercfg: parse: %w", err)
		}
	}

	var set Set
	if err := k.Unmarshal("", &set); err != nil {
		return nil, fmt.Errorf("limitercfg: unmarshal: %w", err)
	}
	return &set, nil
}
