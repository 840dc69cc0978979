package plugin

import "errors"

var (
	// ErrUnknownPlugin is returned when a plugin name is not registered.
	ErrUnknownPlugin = errors.New("unknown plugin")

	// ErrNoPlugins is returned when the selection is empty.
	ErrNoPlugins = errors.New("no plugins selected")
)
