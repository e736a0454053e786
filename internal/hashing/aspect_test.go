package hashing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Unit_NewSet_ContainsOnlyEntireFile_Success(t *testing.T) {
	t.Parallel()

	s := NewSet()
	aspects := s.All()
	require.Len(t, aspects, 1)
	require.Equal(t, EntireFile.Name, aspects[0].Name)
}

func Test_Unit_LoadPolicy_ParsesAllowDeny_Success(t *testing.T) {
	t.Parallel()

	doc := []byte(`
aspects:
  codeOnly:
    allow: '^\s*[^/]'
    deny: '^\s*//'
`)
	s, err := LoadPolicy(doc)
	require.NoError(t, err)

	a, ok := s.Get("codeOnly")
	require.True(t, ok)
	require.NotNil(t, a.LineAllow)
	require.NotNil(t, a.LineDeny)

	_, ok = s.Get(EntireFile.Name)
	require.True(t, ok, "LoadPolicy should still register the default aspect")
}

func Test_Unit_LoadPolicy_InvalidRegex_Fail(t *testing.T) {
	t.Parallel()

	doc := []byte(`
aspects:
  broken:
    allow: '[unterminated'
`)
	_, err := LoadPolicy(doc)
	require.Error(t, err)
}

func Test_Unit_HashFile_EntireFile_ChangesWithContent_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	h1, err := HashFile(path, EntireFile)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("hello world\n"), 0o644))
	h2, err := HashFile(path, EntireFile)
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
}

func Test_Unit_HashFile_LineDeny_IgnoresCommentChanges_Success(t *testing.T) {
	t.Parallel()

	s, err := LoadPolicy([]byte(`
aspects:
  codeOnly:
    deny: '^//'
`))
	require.NoError(t, err)
	aspect, ok := s.Get("codeOnly")
	require.True(t, ok)

	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	require.NoError(t, os.WriteFile(path, []byte("code()\n// comment one\n"), 0o644))
	h1, err := HashFile(path, aspect)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("code()\n// comment two\n"), 0o644))
	h2, err := HashFile(path, aspect)
	require.NoError(t, err)

	require.Equal(t, h1, h2)
}

func Test_Unit_HashBytes_DifferentInputsDiffer_Success(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, HashBytes([]byte("a")), HashBytes([]byte("b")))
	require.Equal(t, HashBytes([]byte("a")), HashBytes([]byte("a")))
}
