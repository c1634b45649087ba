package display

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestIsQuitKey(t *testing.T) {
	tests := []struct {
		name string
		key  int
		want bool
	}{
		{"no key", -1, false},
		{"q", 'q', true},
		{"escape", 27, true},
		{"q with modifier bits", 0x100000 | 'q', true},
		{"Q is not quit", 'Q', false},
		{"space", ' ', false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsQuitKey(tc.key); got != tc.want {
				t.Errorf("IsQuitKey(%#x): got %v, want %v", tc.key, got, tc.want)
			}
		})
	}
}

func TestHeadless(t *testing.T) {
	var s Sink = Headless{}
	m := gocv.NewMat()
	defer m.Close()

	if s.Show(m) {
		t.Error("Headless should never request quit")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
