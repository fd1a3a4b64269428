package version

import (
	"runtime"
	"testing"
)

func TestFullString(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "dev"
	if got := FullString(); got != "recipescrape development version" {
		t.Errorf("FullString() = %q", got)
	}

	Version = "1.2.0"
	if got := FullString(); got != "recipescrape 1.2.0" {
		t.Errorf("FullString() = %q", got)
	}
	if String() != "1.2.0" {
		t.Errorf("String() = %q", String())
	}
}

func TestInfo(t *testing.T) {
	info := Info()
	if info["goVersion"] != runtime.Version() {
		t.Errorf("goVersion = %q, want %q", info["goVersion"], runtime.Version())
	}
	for _, key := range []string{"version", "buildDate", "gitCommit"} {
		if _, ok := info[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}
