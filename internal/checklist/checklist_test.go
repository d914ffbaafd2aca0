package checklist_test

import (
	"github.com/evgkarn/cafebot/internal/checklist"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func writeChecklist(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestStoreLoad(t *testing.T) {
	dir := t.TempDir()
	writeChecklist(t, dir, "open_checklist.json", `[
		{"question": "Fridge clean?", "requires_media": false},
		{"question": "Photo of counter", "requires_media": true}
	]`)
	store := checklist.NewStore(dir)

	def, err := store.Load(checklist.Open)
	require.NoError(t, err)
	require.Len(t, def, 2)
	require.Equal(t, "Fridge clean?", def[0].Text)
	require.False(t, def[0].RequiresEvidence)
	require.True(t, def[1].RequiresEvidence)
}

func TestStoreLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	store := checklist.NewStore(dir)

	tests := []struct {
		name  string
		setup func(t *testing.T)
		typ   checklist.Type
	}{
		{
			name:  "missing file",
			setup: func(*testing.T) {},
			typ:   checklist.Close,
		},
		{
			name: "empty definition",
			setup: func(t *testing.T) {
				writeChecklist(t, dir, "close_checklist.json", `[]`)
			},
			typ: checklist.Close,
		},
		{
			name:  "unknown type",
			setup: func(*testing.T) {},
			typ:   checklist.Type("weekly"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			_, err := store.Load(tt.typ)
			require.ErrorIs(t, err, checklist.ErrNotFound)
		})
	}
}

func TestStoreLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeChecklist(t, dir, "open_checklist.json", `{not json`)
	store := checklist.NewStore(dir)

	_, err := store.Load(checklist.Open)
	require.Error(t, err)
	require.NotErrorIs(t, err, checklist.ErrNotFound)
}
