package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yam-build/yam/internal/graph"
)

func Test_Unit_ParseRepositories_SingleEntry_Success(t *testing.T) {
	t.Parallel()

	src := `
name = third_party
dir = vendor/third_party
type = Tracked
;
`
	entries, err := ParseRepositories(src)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "third_party", entries[0].Name)
	require.Equal(t, "vendor/third_party", entries[0].Dir)
	require.Equal(t, graph.Tracked, entries[0].Type)
	require.Empty(t, entries[0].Inputs)
}

func Test_Unit_ParseRepositories_WithInputsAndComment_Success(t *testing.T) {
	t.Parallel()

	src := `
# monorepo partner
name = partner
dir = ../partner
type = Coupled
inputs = . libs
;
`
	entries, err := ParseRepositories(src)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{".", "libs"}, entries[0].Inputs)
	require.Equal(t, graph.Coupled, entries[0].Type)
}

func Test_Unit_ParseRepositories_MultipleEntries_Success(t *testing.T) {
	t.Parallel()

	src := `
name = a dir = a type = Integrated ;
name = b dir = b type = Ignored ;
`
	entries, err := ParseRepositories(src)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].Name)
	require.Equal(t, "b", entries[1].Name)
	require.Equal(t, graph.Ignored, entries[1].Type)
}

func Test_Unit_ParseRepositories_DuplicateName_Fail(t *testing.T) {
	t.Parallel()

	src := `
name = a dir = a type = Integrated ;
name = a dir = b type = Integrated ;
`
	_, err := ParseRepositories(src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate repository name")
}

func Test_Unit_ParseRepositories_InvalidDotDotDir_Fail(t *testing.T) {
	t.Parallel()

	src := `name = a dir = ../../escape type = Integrated ;`
	_, err := ParseRepositories(src)
	require.Error(t, err)
}

func Test_Unit_ParseRepositories_UnknownType_Fail(t *testing.T) {
	t.Parallel()

	src := `name = a dir = a type = Bogus ;`
	_, err := ParseRepositories(src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown repository type")
}

func Test_Unit_ParseRepositories_MissingSemicolon_Fail(t *testing.T) {
	t.Parallel()

	src := `name = a dir = a type = Integrated`
	_, err := ParseRepositories(src)
	require.Error(t, err)
}

func Test_Unit_ResolveDir_Success(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/home/repo/vendor", ResolveDir("/home/repo", "vendor"))
	require.Equal(t, "/abs/path", ResolveDir("/home/repo", "/abs/path"))
}
