package timeouts

import (
	"testing"
	"time"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	defer Reset()

	Configure(Config{Short: 7 * time.Second})
	if got := Short(); got != 7*time.Second {
		t.Errorf("Short: got %v, want 7s", got)
	}
	if got := Verify(); got != DefaultVerify {
		t.Errorf("Verify changed: got %v", got)
	}
}

func TestReset(t *testing.T) {
	Configure(Config{Long: time.Minute})
	Reset()
	if got := Long(); got != DefaultLong {
		t.Errorf("Long after Reset: got %v, want %v", got, DefaultLong)
	}
}
