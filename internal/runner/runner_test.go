package runner

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/yam-build/yam/internal/graph"
	"github.com/yam-build/yam/internal/service"
)

func newMemFsHome(t *testing.T, homeDir string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(homeDir, 0o755))
	return fs
}

func Test_Unit_Runner_LoadRepositories_AddsHomeByDefault_Success(t *testing.T) {
	t.Parallel()

	homeDir := "/home"
	fs := newMemFsHome(t, homeDir)

	r := New(Options{HomeDir: homeDir, ConfigText: "", Fs: fs})
	ectx := graph.NewExecutionContext(nil, nil, nil)

	repos, err := r.loadRepositories(ectx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	require.Equal(t, graph.HomeRepositoryName, repos[0].Name)
	require.Equal(t, homeDir, repos[0].Dir)
}

func Test_Unit_Runner_LoadRepositories_ParsesConfiguredEntries_Success(t *testing.T) {
	t.Parallel()

	homeDir := "/home"
	fs := newMemFsHome(t, homeDir)
	require.NoError(t, fs.MkdirAll(homeDir+"/vendor", 0o755))

	configText := `
name = vendor
dir = vendor
type = Tracked
;
`
	r := New(Options{HomeDir: homeDir, ConfigText: configText, Fs: fs})
	ectx := graph.NewExecutionContext(nil, nil, nil)

	repos, err := r.loadRepositories(ectx)
	require.NoError(t, err)
	require.Len(t, repos, 2)

	names := map[string]string{}
	for _, repo := range repos {
		names[repo.Name] = repo.Dir
	}
	require.Equal(t, homeDir+"/vendor", names["vendor"])
	require.Equal(t, homeDir, names["."])
}

func Test_Unit_Runner_LoadAspects_DefaultsToEntireFile_Success(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	aspects, err := r.loadAspects()
	require.NoError(t, err)
	require.NotNil(t, aspects)
	_, ok := aspects.Get("entireFile")
	require.True(t, ok)
}

func Test_Unit_Runner_Run_NoBuildFiles_SucceedsTrivially_Success(t *testing.T) {
	t.Parallel()

	homeDir := "/home"
	fs := newMemFsHome(t, homeDir)

	r := New(Options{HomeDir: homeDir, ConfigText: "", Fs: fs})

	stop := make(chan struct{})
	result := r.Run(service.BuildRequest{}, stop, nil)

	require.True(t, result.Success)
	require.Equal(t, 0, result.Failed)
}
