package common

import "testing"

func TestPipePath(t *testing.T) {
	if got := PipePath("asyncload"); got != `\\.\pipe\asyncload` {
		t.Fatalf("PipePath = %q", got)
	}
	if got := PipePath(`\\.\pipe\other`); got != `\\.\pipe\other` {
		t.Fatalf("full path changed: %q", got)
	}
	if got := PipeName(`\\.\pipe\asyncload`); got != "asyncload" {
		t.Fatalf("PipeName = %q", got)
	}
}
