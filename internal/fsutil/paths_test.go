package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithinDir(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"base itself", base, true},
		{"child", filepath.Join(base, "csv", "bag.pos"), true},
		{"cleaned child", filepath.Join(base, "csv", "..", "x"), true},
		{"parent", filepath.Join(base, ".."), false},
		{"traversal", base + "/../../etc/passwd", false},
		{"sibling prefix", base + "-other/file", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithinDir(tt.path, base)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrOutsideDir)
			}
		})
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"trip_0412":        "trip_0412",
		"trips/a b":        "trips_a_b",
		"../../etc":        "etc",
		"":                 "unknown",
		"___":              "unknown",
		"bag:2024-03-01 ": "bag_2024-03-01",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeName(in), "input %q", in)
	}
}
