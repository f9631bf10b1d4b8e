package version_test

import (
	"testing"

	v "github.com/keithlinneman/linnemanlabs-users/internal/version"
)

func TestGet_LinkTimeValues(t *testing.T) {
	oldV, oldC := v.Version, v.Commit
	t.Cleanup(func() { v.Version, v.Commit = oldV, oldC })

	v.Version = "1.4.0"
	v.Commit = "0123456789abcdef0123"
	info := v.Get()

	if info.App != v.AppName {
		t.Fatalf("App = %q", info.App)
	}
	if info.Version != "1.4.0" || info.Commit != "0123456789abcdef0123" {
		t.Fatalf("info = %+v", info)
	}
	if info.Short() != "0123456789ab" {
		t.Fatalf("Short() = %q", info.Short())
	}
	if info.GoVersion == "" {
		t.Fatal("GoVersion should come from build info")
	}
}

func TestInfo_ShortCommit(t *testing.T) {
	if got := (v.Info{Commit: "abc"}).Short(); got != "abc" {
		t.Fatalf("Short() = %q", got)
	}
}
