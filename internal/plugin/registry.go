package plugin

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Factory builds a plugin from options.
type Factory func(opts Options) Plugin

var registry = map[string]Factory{
	"xss":     func(opts Options) Plugin { return NewXSSPlugin(opts) },
	"dom_xss": func(opts Options) Plugin { return NewDOMXSSPlugin(opts) },
	"headers": func(opts Options) Plugin { return NewHeadersPlugin(opts) },
}

// Names returns the registered plugin names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Select builds the named plugins. Duplicate names are ignored.
func Select(names []string, opts Options) ([]Plugin, error) {
	plugins := make([]Plugin, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownPlugin, name, strings.Join(Names(), ", "))
		}
		seen[name] = true
		plugins = append(plugins, factory(opts))
	}

	if len(plugins) == 0 {
		return nil, ErrNoPlugins
	}
	return plugins, nil
}
