package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindWorkspace(t *testing.T) {
	// base/
	//   project/ (.notesync)
	//     sub/
	//       nested/
	//   empty/
	// A stray file named .notesync must not count.
	base := t.TempDir()
	project := filepath.Join(base, "project")
	nested := filepath.Join(project, "sub", "nested")
	empty := filepath.Join(base, "empty")
	stray := filepath.Join(base, "stray")

	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.MkdirAll(empty, 0o755))
	require.NoError(t, os.MkdirAll(stray, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(project, WorkspaceDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stray, WorkspaceDir), nil, 0o644))

	want := filepath.Join(project, WorkspaceDir)

	tests := []struct {
		name    string
		start   string
		want    string
		wantErr bool
	}{
		{name: "at project", start: project, want: want},
		{name: "in nested dir", start: nested, want: want},
		{name: "outside", start: empty, wantErr: true},
		{name: "file marker", start: stray, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindWorkspace(tt.start)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoWorkspace)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
