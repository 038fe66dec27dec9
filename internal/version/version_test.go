package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestInfoIsNeverEmpty(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Fatalf("empty build info: version=%q commit=%q date=%q", v, c, d)
	}
	if GetVersion() != v || GetCommit() != c || GetDate() != d {
		t.Fatal("getters must match Info")
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "marketplace ") {
		t.Fatalf("unexpected prefix: %q", s)
	}
	for _, part := range []string{"version=" + GetVersion(), "commit=" + GetCommit(), "date=" + GetDate()} {
		if !strings.Contains(s, part) {
			t.Fatalf("%q does not contain %q", s, part)
		}
	}
}

func TestFields(t *testing.T) {
	fields := Fields()
	if fields["service"] != "marketplace" || fields["version"] != GetVersion() {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestApplyBuildInfo(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	t.Cleanup(func() { version, commit, date = origVersion, origCommit, origDate })

	tests := []struct {
		name        string
		preset      [3]string
		info        debug.BuildInfo
		wantVersion string
		wantCommit  string
		wantDate    string
	}{
		{
			name:   "fills defaults from vcs",
			preset: [3]string{"dev", "unknown", "unknown"},
			info: debug.BuildInfo{
				Main: debug.Module{Version: "v1.4.0"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef0123"},
					{Key: "vcs.time", Value: "2026-10-01T10:00:00Z"},
				},
			},
			wantVersion: "v1.4.0",
			wantCommit:  "0123456789ab",
			wantDate:    "2026-10-01T10:00:00Z",
		},
		{
			name:        "ldflags win",
			preset:      [3]string{"1.2.3", "abc", "today"},
			info:        debug.BuildInfo{Main: debug.Module{Version: "v9.9.9"}},
			wantVersion: "1.2.3",
			wantCommit:  "abc",
			wantDate:    "today",
		},
		{
			name:        "devel build keeps dev",
			preset:      [3]string{"dev", "unknown", "unknown"},
			info:        debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			wantVersion: "dev",
			wantCommit:  "unknown",
			wantDate:    "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, commit, date = tt.preset[0], tt.preset[1], tt.preset[2]
			applyBuildInfo(&tt.info)
			if version != tt.wantVersion || commit != tt.wantCommit || date != tt.wantDate {
				t.Fatalf("got %s/%s/%s", version, commit, date)
			}
		})
	}
}
