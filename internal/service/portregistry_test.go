package service

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Unit_PortRegistry_WriteRead_RoundTrips_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, WritePortRegistry(dir, 1234, 5678))

	pid, port, err := ReadPortRegistry(dir)
	require.NoError(t, err)
	require.Equal(t, 1234, pid)
	require.Equal(t, 5678, port)
}

func Test_Unit_PortRegistry_Remove_DeletesFile_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, WritePortRegistry(dir, 1, 2))
	require.NoError(t, RemovePortRegistry(dir))

	_, _, err := ReadPortRegistry(dir)
	require.Error(t, err)
}

func Test_Unit_PortRegistry_RemoveMissing_NoError_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, RemovePortRegistry(dir))
}

func Test_Unit_PortRegistry_Read_MalformedContents_Fail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(dir+"/.yam", 0o755))
	require.NoError(t, os.WriteFile(dir+"/.yam/.servicePort", []byte("garbage"), 0o644))

	_, _, err := ReadPortRegistry(dir)
	require.Error(t, err)
}

func Test_Unit_IsAlive_CurrentProcess_True_Success(t *testing.T) {
	t.Parallel()

	require.True(t, IsAlive(os.Getpid()))
}
