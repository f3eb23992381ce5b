//go:build !windows

package privilege

import (
	"os"
	"testing"
)

func TestElevatedMatchesUID(t *testing.T) {
	if got, want := Elevated(), os.Getuid() == 0; got != want {
		t.Fatalf("Elevated() = %v, want %v", got, want)
	}
}
