package plugin_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/xssweep/internal/plugin"
)

func TestNames(t *testing.T) {
	t.Parallel()

	want := []string{"dom_xss", "headers", "xss"}
	if got := plugin.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	t.Run("by name", func(t *testing.T) {
		t.Parallel()

		plugins, err := plugin.Select([]string{" XSS ", "dom_xss", "xss", ""}, plugin.Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(plugins) != 2 || plugins[0].Name() != "xss" || plugins[1].Name() != "dom_xss" {
			t.Errorf("unexpected selection: %v", plugins)
		}
	})

	t.Run("unknown plugin", func(t *testing.T) {
		t.Parallel()

		_, err := plugin.Select([]string{"csrf"}, plugin.Options{})
		if !errors.Is(err, plugin.ErrUnknownPlugin) {
			t.Errorf("expected ErrUnknownPlugin, got %v", err)
		}
	})

	t.Run("empty selection", func(t *testing.T) {
		t.Parallel()

		_, err := plugin.Select(nil, plugin.Options{})
		if !errors.Is(err, plugin.ErrNoPlugins) {
			t.Errorf("expected ErrNoPlugins, got %v", err)
		}
	})
}
