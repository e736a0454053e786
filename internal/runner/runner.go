// Package runner wires the node graph, the build-file compiler, the
// repositories config, and the scheduling substrate into one executable
// build: the glue cmd/yamd needs to satisfy internal/service.Runner (spec
// §4.10) without the core packages depending on the service layer.
package runner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/yam-build/yam/internal/config"
	"github.com/yam-build/yam/internal/graph"
	"github.com/yam-build/yam/internal/hashing"
	"github.com/yam-build/yam/internal/logging"
	"github.com/yam-build/yam/internal/monitor"
	"github.com/yam-build/yam/internal/sched"
	"github.com/yam-build/yam/internal/service"
)

// BuildFileName is the conventional per-repository build-file name
// compiled into command nodes at startup.
const BuildFileName = "build.yam"

// Options configures one Runner instance. Fs defaults to the real OS
// filesystem; tests substitute afero.NewMemMapFs().
type Options struct {
	HomeDir     string
	ConfigText  string // repositories config file contents
	AspectsYAML []byte // may be nil: falls back to hashing.EntireFile only
	Fs          afero.Fs
	Workers     int
}

// Runner implements service.Runner by compiling every repository's build
// file into a scope-root GroupNode and driving it to completion.
type Runner struct {
	opts Options
	fs   afero.Fs
}

func New(opts Options) *Runner {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Runner{opts: opts, fs: fs}
}

var _ service.Runner = (*Runner)(nil)

// Run implements service.Runner. It builds a fresh ExecutionContext for
// each request — persistent state across builds is internal/store's job,
// not this package's (spec §4.8 is independent of §4.10's orchestration).
func (r *Runner) Run(req service.BuildRequest, stop <-chan struct{}, emit func(logging.Record)) service.BuildResult {
	if emit == nil {
		emit = func(logging.Record) {}
	}
	graphSink := logging.NewGraphSink(emitSink(emit), req.KeepGoing)

	mq := sched.NewMainQueue()
	go mq.Run()
	defer mq.Stop()

	workers := req.MaxWorkers
	if workers <= 0 {
		workers = r.opts.Workers
	}
	wp := sched.NewWorkerPool(workers)
	defer wp.Close()

	ectx := graph.NewExecutionContext(mq, wp, graphSink)

	aspects, err := r.loadAspects()
	if err != nil {
		return failResult(err)
	}

	repos, err := r.loadRepositories(ectx)
	if err != nil {
		return failResult(err)
	}

	mon := monitor.Monitor(&monitor.LinuxPoller{})

	root := graph.NewGroupNode(ectx, "//scope-root")
	for _, repo := range repos {
		if !repo.SchedulingEligible() {
			continue
		}
		sourceDir, ok := repo.Root.(*graph.SourceDirNode)
		if !ok {
			continue
		}
		if err := root.Add(sourceDir); err != nil {
			return failResult(err)
		}

		buildFilePath := filepath.Join(repo.Dir, BuildFileName)
		if exists, _ := afero.Exists(r.fs, buildFilePath); !exists {
			continue
		}
		bfSourceName := repo.Name + "/" + BuildFileName
		bfSource := graph.NewSourceFileNode(ectx, bfSourceName, buildFilePath, r.fs, aspects)
		parser := graph.NewBuildFileParserNode(ectx, bfSourceName+"#parse", bfSource, r.fs)
		bins := map[string][]string{} // toolchain bin lookups: none predeclared yet
		compiler := graph.NewBuildFileCompilerNode(ectx, bfSourceName+"#compile", parser, r.fs, aspects, mon, repo.Dir, bins)
		if err := root.Add(compiler); err != nil {
			return failResult(err)
		}
	}

	if len(req.Targets) > 0 {
		var err error
		root, err = filterScope(ectx, req.Targets)
		if err != nil {
			return failResult(err)
		}
	}

	done := make(chan graph.State, 1)
	root.OnCompletion(func(n graph.Node) { done <- n.State() })

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if root.State() == graph.Dirty {
		root.Start(bgCtx)
	}

	select {
	case <-stop:
		root.Cancel()
		<-done
	case <-done:
	}

	snap := ectx.Stats.Snapshot()
	return service.BuildResult{
		Success:  root.State() == graph.Ok,
		Executed: snap.Executed,
		Skipped:  snap.Skipped,
		Failed:   snap.Failed,
		Canceled: snap.Canceled,
	}
}

func (r *Runner) loadAspects() (*hashing.Set, error) {
	if r.opts.AspectsYAML == nil {
		return hashing.NewSet(), nil
	}
	return hashing.LoadPolicy(r.opts.AspectsYAML)
}

func (r *Runner) loadRepositories(ectx *graph.ExecutionContext) ([]*graph.FileRepository, error) {
	entries, err := config.ParseRepositories(r.opts.ConfigText)
	if err != nil {
		return nil, fmt.Errorf("parsing repositories config: %w", err)
	}
	aspects, err := r.loadAspects()
	if err != nil {
		return nil, err
	}

	var repos []*graph.FileRepository
	for _, e := range entries {
		dir := config.ResolveDir(r.opts.HomeDir, e.Dir)
		repo := &graph.FileRepository{Name: e.Name, Dir: dir, Type: e.Type, Inputs: e.Inputs}
		root := graph.NewSourceDirNode(ectx, e.Name, dir, r.fs, aspects)
		repo.Root = root
		if err := ectx.Repositories.Add(repo); err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	if _, ok := ectx.Repositories.Home(); !ok {
		home := &graph.FileRepository{Name: graph.HomeRepositoryName, Dir: r.opts.HomeDir, Type: graph.Integrated}
		home.Root = graph.NewSourceDirNode(ectx, graph.HomeRepositoryName, r.opts.HomeDir, r.fs, aspects)
		if err := ectx.Repositories.Add(home); err != nil {
			return nil, err
		}
		repos = append(repos, home)
	}
	return repos, nil
}

// filterScope builds a scope root limited to the named targets, used when
// a BuildRequest names specific nodes instead of the whole graph.
func filterScope(ectx *graph.ExecutionContext, targets []string) (*graph.GroupNode, error) {
	scope := graph.NewGroupNode(ectx, "//requested-scope")
	for _, t := range targets {
		if n, ok := ectx.Lookup(t); ok {
			if err := scope.Add(n); err != nil {
				return nil, err
			}
		}
	}
	return scope, nil
}

func failResult(err error) service.BuildResult {
	return service.BuildResult{Success: false, Error: err.Error()}
}

type emitSink func(logging.Record)

func (f emitSink) Log(r logging.Record) { f(r) }
