// Package document reads structured documents (JSON, JSON with comments, YAML
// and TOML) into their top-level mapping. Keys are kept verbatim: the
// mapping is not flattened, so keys may contain dots.
package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/muhammadmuzzammil1998/jsonc"
	"github.com/spf13/afero"
)

// ErrUnsupportedFormat is returned for files whose extension has no parser.
var ErrUnsupportedFormat = errors.New("unsupported document format")

type format int

const (
	formatJSON format = iota
	formatYAML
	formatTOML
)

// formatOf selects the document format by file extension.
func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func (f format) parser() koanf.Parser {
	switch f {
	case formatYAML:
		return yaml.Parser()
	case formatTOML:
		return toml.Parser()
	default:
		return json.Parser()
	}
}

// readFile returns the document bytes. JSON files are run through the JSONC
// translator so rule files may carry comments.
func readFile(fs afero.Fs, path string) (format, []byte, error) {
	f, err := formatOf(path)
	if err != nil {
		return 0, nil, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if f == formatJSON {
		data = jsonc.ToJSON(data)
	}
	return f, data, nil
}

func parse(f format, path string, data []byte) (map[string]any, error) {
	out, err := f.parser().Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Read loads and parses the document at path from fs.
func Read(fs afero.Fs, path string) (map[string]any, error) {
	f, data, err := readFile(fs, path)
	if err != nil {
		return nil, err
	}
	return parse(f, path, data)
}

// Strings converts a parsed list into strings. Unlike a lenient conversion,
// any non-string element is an error, reported with its index.
func Strings(val any) ([]string, error) {
	switch v := val.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %T", i, elem)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return append([]string(nil), v...), nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", val)
	}
}

// Int converts a parsed number into an int. JSON numbers arrive as float64
// and are accepted only when they hold a whole value.
func Int(val any) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", val)
	}
}

// Map asserts a parsed value is a nested mapping.
func Map(val any) (map[string]any, error) {
	m, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected mapping, got %T", val)
	}
	return m, nil
}
