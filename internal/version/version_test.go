package version

import "testing"

func TestString(t *testing.T) {
	if got := String(); got != "hybridex dev (unknown, built unknown)" {
		t.Errorf("unexpected build string %q", got)
	}
}
