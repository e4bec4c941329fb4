package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveState_IsRunning(t *testing.T) {
	cases := map[ActiveState]bool{
		StateActive:       true,
		StateReloading:    true,
		StateInactive:     false,
		StateFailed:       false,
		StateActivating:   false,
		StateDeactivating: false,
	}
	for state, want := range cases {
		assert.Equal(t, want, state.IsRunning(), "state %s", state)
	}
}

func TestWriteUnitFile_CreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "default-kafka-1-kafka.service")

	require.NoError(t, writeUnitFile(path, "[Unit]\nDescription=x\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Unit]\nDescription=x\n", string(data))
}

func TestRemoveUnitFile_MissingFileIsNotError(t *testing.T) {
	err := removeUnitFile(filepath.Join(t.TempDir(), "missing.service"))
	assert.NoError(t, err)
}

func TestRemoveUnitFile_DeletesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.service")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, removeUnitFile(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWaitForJob_DoneResult(t *testing.T) {
	ch := make(chan string, 1)
	ch <- "done"

	_, err := waitForJob(context.Background(), ch)
	assert.NoError(t, err)
}

func TestWaitForJob_FailedResult(t *testing.T) {
	ch := make(chan string, 1)
	ch <- "failed"

	_, err := waitForJob(context.Background(), ch)
	assert.Error(t, err)
}

func TestWaitForJob_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := waitForJob(ctx, make(chan string))
	assert.ErrorIs(t, err, context.Canceled)
}
