package shared

import (
	"errors"
	"slices"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	const authURL = "https://accounts.spotify.com/authorize?client_id=abc&state=xyz"

	tests := []struct {
		goos string
		name string
		args []string
	}{
		{"darwin", "open", []string{authURL}},
		{"linux", "xdg-open", []string{authURL}},
		{"freebsd", "xdg-open", []string{authURL}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", authURL}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, authURL)
			if err != nil {
				t.Fatalf("browserCommand failed: %v", err)
			}
			if name != tt.name || !slices.Equal(args, tt.args) {
				t.Errorf("got %s %v, want %s %v", name, args, tt.name, tt.args)
			}
		})
	}

	t.Run("unknown platform", func(t *testing.T) {
		if _, _, err := browserCommand("plan9", authURL); !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
		}
	})
}

func TestOpenBrowser(t *testing.T) {
	t.Run("rejects non-web URLs before launching anything", func(t *testing.T) {
		for _, raw := range []string{"", "file:///etc/passwd", "javascript:alert(1)", "https://", "not a url"} {
			t.Run(raw, func(t *testing.T) {
				if err := OpenBrowser(raw); !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
			})
		}
	})
}
