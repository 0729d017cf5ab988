package version

import (
	"strings"
	"testing"
)

func TestStringIncludesAllBuildInfo(t *testing.T) {
	got := String()
	for _, part := range []string{Version, GitSHA, BuildTime} {
		if !strings.Contains(got, part) {
			t.Errorf("String() = %q, missing %q", got, part)
		}
	}
}
