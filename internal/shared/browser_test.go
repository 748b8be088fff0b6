package shared

import (
	"errors"
	"testing"
)

func TestOpenBrowser(t *testing.T) {
	t.Run("unsupported platform", func(t *testing.T) {
		orig := getRuntime
		t.Cleanup(func() { getRuntime = orig })
		getRuntime = func() string { return "plan9" }

		if err := OpenBrowser("https://canvaz.scdn.co/a.mp4"); !errors.Is(err, ErrNotImplemented) {
			t.Errorf("expected ErrNotImplemented, got %v", err)
		}
	})

	for _, in := range []string{"", "file:///etc/passwd", "javascript:alert(1)", "https://", "::not a url"} {
		t.Run("rejects "+in, func(t *testing.T) {
			if err := OpenBrowser(in); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("OpenBrowser(%q) = %v, want ErrInvalidArgument", in, err)
			}
		})
	}
}
