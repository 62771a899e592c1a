package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "reports")
	outside := filepath.Join(tmpDir, "outside")
	require.NoError(t, os.MkdirAll(safeDir, 0755))
	require.NoError(t, os.MkdirAll(outside, 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(safeDir, "escape")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(safeDir, "session.csv"), false},
		{"nested new file", filepath.Join(safeDir, "2026", "10", "report.md"), false},
		{"dir itself", safeDir, false},
		{"dot dot", filepath.Join(safeDir, "..", "session.csv"), true},
		{"sibling", filepath.Join(outside, "session.csv"), true},
		{"through symlink", filepath.Join(safeDir, "escape", "session.csv"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safeDir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(safeDir, "x"), filepath.Join(tmpDir, "missing")))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                      "unknown",
		"warehouse lift #3":     "warehouse_lift_3",
		"../../etc/passwd":      "etc_passwd",
		"session-2026.10.18_am": "session-2026.10.18_am",
		"!!!":                   "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}
