package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyindl/pkg/media"
)

func sampleTasks() []media.Task {
	return []media.Task{
		{Description: "a", Ext: ".mp4", Kind: media.KindVideo},
		{Description: "b_p1", Ext: ".jpg", Kind: media.KindImage},
		{Description: "c", Ext: ".mp4", Kind: media.KindVideo, Collection: "Mix"},
	}
}

func touch(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
}

func TestLoadMissingLog(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "nope.log"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestSaveIsUnion(t *testing.T) {
	logPath := LogPath(t.TempDir())

	first := NewIndex()
	first.AddAll([]string{"b.mp4", "a.mp4"})
	require.NoError(t, first.Save(logPath))

	second := NewIndex()
	second.Add("images/c.jpg")
	second.Add("  ")
	require.NoError(t, second.Save(logPath))

	loaded, err := Load(logPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mp4", "b.mp4", "images/c.jpg"}, loaded.Paths())

	_, err = os.Stat(logPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must not linger")
}

func TestFilterEmptyIndexLogModeIsNoop(t *testing.T) {
	tasks := sampleTasks()
	done, todo, err := NewIndex().Filter(context.Background(), t.TempDir(), tasks, ModeLog)
	require.NoError(t, err)
	assert.Empty(t, done)
	assert.Equal(t, tasks, todo)
}

func TestFilterFullyIndexed(t *testing.T) {
	idx := NewIndex()
	idx.AddAll([]string{"a.mp4", "images/b_p1.jpg", "Mix/c.mp4"})

	done, todo, err := idx.Filter(context.Background(), t.TempDir(), sampleTasks(), ModeLog)
	require.NoError(t, err)
	assert.Len(t, done, 3)
	assert.Empty(t, todo)
}

func TestFilterFilesystem(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "images/b_p1.jpg")

	idx := NewIndex()
	idx.Add("a.mp4") // ignored in filesystem mode

	done, todo, err := idx.Filter(context.Background(), root, sampleTasks(), ModeFilesystem)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "b_p1", done[0].Description)
	assert.Len(t, todo, 2)
	assert.Equal(t, "a", todo[0].Description, "order is preserved")
}

func TestFilterBoth(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "Mix/c.mp4")

	idx := NewIndex()
	idx.Add("a.mp4")

	done, todo, err := idx.Filter(context.Background(), root, sampleTasks(), ModeBoth)
	require.NoError(t, err)
	assert.Len(t, done, 2)
	require.Len(t, todo, 1)
	assert.Equal(t, "b_p1", todo[0].Description)
}

func TestFilterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewIndex().Filter(ctx, t.TempDir(), sampleTasks(), ModeFilesystem)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeLog, ParseMode("LOG"))
	assert.Equal(t, ModeBoth, ParseMode("both"))
	assert.Equal(t, ModeFilesystem, ParseMode(""))
	assert.Equal(t, ModeFilesystem, ParseMode("sqlite"))
}
