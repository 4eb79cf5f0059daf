package envprobe

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSessionTypeFromXDG(t *testing.T) {
	t.Setenv("XDG_SESSION_TYPE", "wayland")
	t.Setenv("WAYLAND_DISPLAY", "")
	t.Setenv("DISPLAY", ":0")

	if got := sessionType(); got != "wayland" {
		t.Errorf("expected wayland, got %s", got)
	}
}

func TestSessionTypeFromDisplayVars(t *testing.T) {
	cases := []struct {
		name    string
		wayland string
		display string
		want    string
	}{
		{"wayland only", "wayland-0", "", "wayland"},
		{"xwayland", "wayland-0", ":0", "x11"},
		{"x11 only", "", ":0", "x11"},
		{"none", "", "", "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("XDG_SESSION_TYPE", "")
			t.Setenv("WAYLAND_DISPLAY", tc.wayland)
			t.Setenv("DISPLAY", tc.display)

			if got := sessionType(); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestCheckNeverFails(t *testing.T) {
	// Point the session bus somewhere that cannot exist so the IBus
	// probe resolves deterministically.
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path=/nonexistent/bus")
	t.Setenv("XDG_SESSION_TYPE", "x11")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report := Check(ctx)
	if report.SessionType != "x11" {
		t.Errorf("expected session x11, got %s", report.SessionType)
	}

	if report.String() == "" {
		t.Error("String returned empty")
	}
}

func TestProblems(t *testing.T) {
	healthy := Report{
		SessionType:    "x11",
		IBusRunning:    true,
		UinputWritable: true,
		InputReadable:  true,
	}
	if problems := healthy.Problems(); len(problems) != 0 {
		t.Errorf("healthy report has problems: %v", problems)
	}

	broken := Report{SessionType: "unknown"}
	problems := broken.Problems()
	if len(problems) != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", len(problems), problems)
	}

	joined := strings.Join(problems, "\n")
	for _, want := range []string{"/dev/uinput", "/dev/input", "IBus", "session"} {
		if !strings.Contains(joined, want) {
			t.Errorf("problems should mention %q:\n%s", want, joined)
		}
	}
}
