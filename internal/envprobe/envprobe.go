// Package envprobe inspects the host environment for the preconditions
// input synthesis and capture depend on: the session type, access to the
// uinput and evdev device nodes, and the presence of an IBus daemon for
// the ctrl+shift+u Unicode gesture.
package envprobe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const ibusBusName = "org.freedesktop.IBus"

// Report describes what the environment supports. All fields are
// best-effort observations; a probe failure reads as "not available".
type Report struct {
	// SessionType is "x11", "wayland" or "unknown".
	SessionType string

	// IBusRunning reports whether an IBus daemon owns its session bus
	// name. The Unicode fallback gesture needs an IBus-style input
	// method on the receiving end.
	IBusRunning bool

	// UinputWritable reports write access to /dev/uinput.
	UinputWritable bool

	// InputReadable reports read access to at least one evdev node.
	InputReadable bool
}

// Check probes the environment. It never fails; absent facilities show
// up as false fields in the report.
func Check(ctx context.Context) Report {
	return Report{
		SessionType:    sessionType(),
		IBusRunning:    ibusRunning(ctx),
		UinputWritable: unix.Access("/dev/uinput", unix.W_OK) == nil,
		InputReadable:  inputReadable(),
	}
}

// Problems renders the report as human-readable advisories, one per
// missing precondition. An empty slice means the environment looks fine.
func (r Report) Problems() []string {
	var problems []string

	if !r.UinputWritable {
		problems = append(problems,
			"/dev/uinput is not writable; uinput synthesis needs udev access or elevated privileges")
	}
	if !r.InputReadable {
		problems = append(problems,
			"no readable /dev/input/event* node; capture needs read access to evdev devices")
	}
	if !r.IBusRunning {
		problems = append(problems,
			"IBus is not running; characters outside the key table rely on the ctrl+shift+u input method gesture")
	}
	if r.SessionType == "unknown" {
		problems = append(problems,
			"no X11 or Wayland session detected")
	}

	return problems
}

func (r Report) String() string {
	return fmt.Sprintf("session=%s ibus=%t uinput=%t input=%t",
		r.SessionType, r.IBusRunning, r.UinputWritable, r.InputReadable)
}

// sessionType determines the display session type. XDG_SESSION_TYPE is
// authoritative when set; otherwise the display variables decide, with
// DISPLAY under WAYLAND_DISPLAY read as XWayland.
func sessionType() string {
	switch os.Getenv("XDG_SESSION_TYPE") {
	case "x11":
		return "x11"
	case "wayland":
		return "wayland"
	}

	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if os.Getenv("DISPLAY") != "" {
			return "x11" // XWayland
		}
		return "wayland"
	}
	if os.Getenv("DISPLAY") != "" {
		return "x11"
	}

	return "unknown"
}

// ibusRunning asks the session bus whether the IBus daemon owns its name.
func ibusRunning(ctx context.Context) bool {
	conn, err := dbus.SessionBus()
	if err != nil {
		return false
	}

	var owned bool
	err = conn.BusObject().
		CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, ibusBusName).
		Store(&owned)
	if err != nil {
		return false
	}

	return owned
}

// inputReadable reports whether any evdev event node is readable.
func inputReadable() bool {
	nodes, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return false
	}

	for _, node := range nodes {
		if unix.Access(node, unix.R_OK) == nil {
			return true
		}
	}

	return false
}
