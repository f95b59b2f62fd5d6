package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/pelletier/go-toml"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ReadOrdered loads the document at path like Read and also returns the keys
// of the top-level mapping named section in the order they appear in the
// file. The order is nil when section is absent or not a mapping.
func ReadOrdered(fs afero.Fs, path, section string) (map[string]any, []string, error) {
	format, data, err := readFile(fs, path)
	if err != nil {
		return nil, nil, err
	}
	out, err := parse(format, path, data)
	if err != nil {
		return nil, nil, err
	}
	order, err := sectionOrder(format, data, section)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read key order of %s: %w", path, err)
	}
	return out, order, nil
}

func sectionOrder(f format, data []byte, section string) ([]string, error) {
	switch f {
	case formatJSON:
		return jsonSectionOrder(data, section)
	case formatYAML:
		return yamlSectionOrder(data, section)
	case formatTOML:
		return tomlSectionOrder(data, section)
	default:
		return nil, nil
	}
}

// jsonSectionOrder walks the token stream of a JSON object. Values other than
// the section are skipped whole.
func jsonSectionOrder(data []byte, section string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, err
	}
	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		if key != section {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}
		keys, err := jsonObjectKeys(dec)
		if err != nil {
			return nil, err
		}
		order = keys
	}
	return order, nil
}

func jsonObjectKeys(dec *json.Decoder) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		// scalar already consumed; arrays need draining
		if tok == json.Delim('[') {
			for dec.More() {
				var skip json.RawMessage
				if err := dec.Decode(&skip); err != nil {
					return nil, err
				}
			}
			_, err = dec.Token()
		}
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = appendKey(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	_, err = dec.Token()
	return keys, err
}

func yamlSectionOrder(data []byte, section string) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, nil
	}
	var order []string
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value != section || top.Content[i+1].Kind != yaml.MappingNode {
			continue
		}
		order = nil
		m := top.Content[i+1]
		for j := 0; j+1 < len(m.Content); j += 2 {
			order = appendKey(order, m.Content[j].Value)
		}
	}
	return order, nil
}

// tomlSectionOrder sorts the section's keys by their position in the file.
func tomlSectionOrder(data []byte, section string) ([]string, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	sub, ok := tree.GetPath([]string{section}).(*toml.Tree)
	if !ok {
		return nil, nil
	}
	keys := sub.Keys()
	slices.SortStableFunc(keys, func(a, b string) int {
		pa := sub.GetPositionPath([]string{a})
		pb := sub.GetPositionPath([]string{b})
		if pa.Line != pb.Line {
			return pa.Line - pb.Line
		}
		return pa.Col - pb.Col
	})
	return keys, nil
}

// appendKey keeps the first position of a repeated key.
func appendKey(keys []string, key string) []string {
	if slices.Contains(keys, key) {
		return keys
	}
	return append(keys, key)
}
