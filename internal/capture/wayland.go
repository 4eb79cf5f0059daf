package capture

import (
	"fmt"
)

// NewWaylandBackend always fails. The Wayland protocols this project
// speaks (virtual-keyboard and input-method) inject events; neither
// offers a way to observe them. Capture pinned to wayland reports
// unsupported instead of silently grabbing evdev nodes behind the
// compositor's back.
func NewWaylandBackend() (Backend, error) {
	return nil, fmt.Errorf("wayland capture: %w", ErrNotSupported)
}
