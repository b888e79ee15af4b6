package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pfrederiksen/bamf-monitor/internal/exam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		content   *string // nil means no file
		wantErr   bool
		wantLast  string
		wantFound bool
		wantTerm  bool
	}{
		{
			name:    "no state file",
			content: nil,
		},
		{
			name:    "empty state file",
			content: ptr(""),
		},
		{
			name:    "defaults written by a previous run",
			content: ptr(`{"last_date": null, "target_found_at": null, "terminated": false}`),
		},
		{
			name:      "found and monitoring",
			content:   ptr(`{"last_date": "04.02.2026", "target_found_at": "2026-02-04T08:15:00.123456", "terminated": false}`),
			wantLast:  "04.02.2026",
			wantFound: true,
		},
		{
			name:      "terminated",
			content:   ptr(`{"last_date": "04.02.2026", "target_found_at": "2026-02-04T08:15:00Z", "terminated": true}`),
			wantLast:  "04.02.2026",
			wantFound: true,
			wantTerm:  true,
		},
		{
			name:    "corrupt state file",
			content: ptr(`{"last_date": `),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0644))
			}

			store, err := New(path)
			require.NoError(t, err)

			state, err := store.Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, state)

			assert.Equal(t, tt.wantLast, state.LastDateString())
			assert.Equal(t, tt.wantFound, state.TargetFoundAt != nil)
			assert.Equal(t, tt.wantTerm, state.Terminated)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")

	store, err := New(path)
	require.NoError(t, err)

	found := time.Date(2026, 2, 4, 8, 15, 0, 0, time.UTC)
	last := "04.02.2026"
	want := &exam.State{
		LastDate:      &last,
		TargetFoundAt: exam.NewTimestamp(found),
		Terminated:    true,
	}

	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "04.02.2026", got.LastDateString())
	require.NotNil(t, got.TargetFoundAt)
	assert.True(t, found.Equal(got.TargetFoundAt.Time))
	assert.True(t, got.Terminated)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"target_found_at": "2026-02-04T08:15:00Z"`)
}

func TestSave_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := New(path)
	require.NoError(t, err)

	first := "26.01.2026"
	require.NoError(t, store.Save(&exam.State{LastDate: &first}))
	require.NoError(t, store.Save(exam.NewState()))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got.LastDate)

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNew_DefaultPath(t *testing.T) {
	store, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPath, store.Path())
}

func TestNew_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := New("~/.local/share/bamf-monitor/state.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local/share/bamf-monitor/state.json"), store.Path())

	_, err = os.Stat(filepath.Join(home, ".local/share/bamf-monitor"))
	assert.NoError(t, err)
}

func ptr(s string) *string { return &s }
