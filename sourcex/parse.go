package sourcex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/magiconair/properties"
	"gopkg.in/yaml.v3"
)

// ParseProperties parses Java-style .properties content. ${...} references
// are kept literally.
func ParseProperties(data []byte) (map[string]string, error) {
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	return p.Map(), nil
}

// ParseYAML parses a YAML document and flattens it: nested mapping keys are
// joined with ".", sequences of scalars are joined with "," and sequences
// holding mappings are indexed ("servers.0.host"). Null values are skipped.
func ParseYAML(data []byte) (map[string]string, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if doc == nil {
		return out, nil
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("yaml document root must be a mapping, got %T", doc)
	}
	flatten(out, "", root)
	return out, nil
}

func flatten(out map[string]string, prefix string, node any) {
	switch v := node.(type) {
	case nil:
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(out, join(prefix, k), v[k])
		}
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, item := range v {
			m[fmt.Sprint(k)] = item
		}
		flatten(out, prefix, m)
	case []any:
		if scalars, ok := joinScalars(v); ok {
			if scalars != "" {
				out[prefix] = scalars
			}
			return
		}
		for i, item := range v {
			flatten(out, join(prefix, fmt.Sprint(i)), item)
		}
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

func joinScalars(items []any) (string, bool) {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch item.(type) {
		case map[string]any, []any:
			return "", false
		case nil:
			continue
		}
		parts = append(parts, fmt.Sprint(item))
	}
	return strings.Join(parts, ","), true
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
