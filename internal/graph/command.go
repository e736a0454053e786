package graph

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/yam-build/yam/internal/hashing"
	"github.com/yam-build/yam/internal/monitor"
)

// CommandNode runs a shell script under access monitoring (spec §4.6). Its
// declared outputs are GeneratedFileNodes; its inputs are learned during
// Self from the monitor's access report.
type CommandNode struct {
	*Base

	ctx2    *ExecutionContext
	fs      afero.Fs
	aspects *hashing.Set
	mon     monitor.Monitor

	Script   string
	Dir      string
	Env      []string
	Outputs  []*GeneratedFileNode
	// InputProducers are other command nodes whose outputs must be Ok
	// before this one may run, declared explicitly in the build file
	// (distinct from learned inputs).
	InputProducers []*CommandNode

	mu            sync.Mutex
	executionHash uint64
	inputs        map[string]*SourceFileNode
	genInputs     map[string]*GeneratedFileNode
	lastStdout    []byte
	lastStderr    []byte
}

func NewCommandNode(ctx *ExecutionContext, name, script, dir string, fs afero.Fs, aspects *hashing.Set, mon monitor.Monitor) *CommandNode {
	n := &CommandNode{
		ctx2:      ctx,
		fs:        fs,
		aspects:   aspects,
		mon:       mon,
		Script:    script,
		Dir:       dir,
		inputs:    make(map[string]*SourceFileNode),
		genInputs: make(map[string]*GeneratedFileNode),
	}
	n.Base = NewBase(ctx, name, n)
	return n
}

// DeclareOutput registers an output generated-file node and wires it as a
// prerequisite-independent sibling: outputs do not gate this command's
// own Self (it produces them), but other commands reading them must wait
// on this one via the GeneratedFileNode's own AddPrerequisite(producer).
func (n *CommandNode) DeclareOutput(g *GeneratedFileNode) {
	n.mu.Lock()
	n.Outputs = append(n.Outputs, g)
	n.mu.Unlock()
}

// DeclareInputProducer registers p as a node whose outputs must reach Ok
// before this command runs (spec §4.6's "declared input producers").
func (n *CommandNode) DeclareInputProducer(p *CommandNode) {
	n.mu.Lock()
	n.InputProducers = append(n.InputProducers, p)
	n.mu.Unlock()
	n.AddPrerequisite(p)
}

func (n *CommandNode) computeExecutionHash() uint64 {
	n.mu.Lock()
	outputs := make([]string, 0, len(n.Outputs))
	for _, o := range n.Outputs {
		outputs = append(outputs, o.Path())
	}
	producers := make([]string, 0, len(n.InputProducers))
	for _, p := range n.InputProducers {
		producers = append(producers, p.Name())
	}
	n.mu.Unlock()
	sort.Strings(outputs)
	sort.Strings(producers)
	return hashing.HashBytes([]byte(n.Script + "\x00" + strings.Join(outputs, "\x00") + "\x00" + strings.Join(producers, "\x00")))
}

// PendingStartSelf skips execution when the execution hash matches the
// stored one and no declared input is dirty (spec §4.6 step 1).
func (n *CommandNode) PendingStartSelf() bool {
	newHash := n.computeExecutionHash()
	n.mu.Lock()
	same := newHash == n.executionHash
	inputsCopy := make([]*SourceFileNode, 0, len(n.inputs))
	for _, sf := range n.inputs {
		inputsCopy = append(inputsCopy, sf)
	}
	genCopy := make([]*GeneratedFileNode, 0, len(n.genInputs))
	for _, gf := range n.genInputs {
		genCopy = append(genCopy, gf)
	}
	n.mu.Unlock()
	if !same {
		return true
	}
	for _, sf := range inputsCopy {
		if sf.State() == Dirty {
			return true
		}
	}
	for _, gf := range genCopy {
		if gf.State() == Dirty {
			return true
		}
	}
	return false
}

func (n *CommandNode) ExecuteSelf(ctx context.Context) *SelfResult {
	req := monitor.Request{
		Program: "/bin/sh",
		Args:    []string{"-c", n.Script},
		Dir:     n.Dir,
		Env:     n.Env,
	}
	report, err := n.mon.Run(ctx, req)
	if err != nil {
		return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrFilesystemFault, "launch: %w", err)}
	}
	if report.ExitCode != 0 {
		return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrScriptFailure,
			"exit code %d\nstdout:\n%s\nstderr:\n%s", report.ExitCode, report.Stdout, report.Stderr)}
	}

	n.mu.Lock()
	declaredOutputs := make(map[string]*GeneratedFileNode, len(n.Outputs))
	for _, o := range n.Outputs {
		declaredOutputs[o.Path()] = o
	}
	n.mu.Unlock()

	// Step 3: classify writes against declared outputs; unmatched writes
	// are a violation.
	written := make(map[string]bool, len(report.Writes))
	for _, w := range report.Writes {
		if _, ok := declaredOutputs[w]; !ok {
			return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrBuildRuleViolation,
				"wrote to undeclared output %s", w)}
		}
		written[w] = true
	}
	for path := range declaredOutputs {
		if !written[path] {
			return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrBuildRuleViolation,
				"command failed to write declared output %s", path)}
		}
	}

	// Step 3 continued: every reported read not matching an output is a
	// learned input.
	var precommit []Node
	learnedFiles := make(map[string]*SourceFileNode)
	learnedGen := make(map[string]*GeneratedFileNode)
	for _, r := range report.Reads {
		if _, isOutput := declaredOutputs[r]; isOutput {
			continue
		}
		if gen, ok := n.findGeneratedFileFor(r); ok {
			if gen.Producer() != nil && gen.Producer().State() != Ok {
				return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrBuildRuleViolation,
					"read %s whose producer %s has not completed", r, gen.Producer().Name())}
			}
			learnedGen[r] = gen
			continue
		}
		repo, ok := n.repositoryFor(r)
		if !ok {
			return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrBuildRuleViolation,
				"read %s outside any known repository", r)}
		}
		if !repo.InputEligible() {
			return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrBuildRuleViolation,
				"read %s in a %s repository, not eligible as a build input", r, repo.Type)}
		}
		// A dirty write to r must be able to reach this command: the
		// repository declaring the command (its own Dir) and the
		// repository owning r may differ, in which case the dependency is
		// only legal when a dirty event in repo is allowed to propagate
		// into the command's own repository (spec §4.13's Coupled rule).
		if home, ok := n.repositoryFor(n.Dir); ok && home.Name != repo.Name && !CanPropagateTo(repo, home) {
			return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrBuildRuleViolation,
				"read %s in repository %s, which may not propagate dirty state into %s", r, repo.Name, home.Name)}
		}
		sf, created := n.findOrCreateSourceFile(r)
		learnedFiles[r] = sf
		if created {
			precommit = append(precommit, sf)
		} else if sf.State() == Dirty {
			precommit = append(precommit, sf)
		}
	}

	newHash := n.computeExecutionHash()

	return &SelfResult{
		State:     Ok,
		PreCommit: precommit,
		Outputs:   report.Writes,
		Hashes:    map[string]uint64{"execution": newHash},
	}
}

func (n *CommandNode) findGeneratedFileFor(absPath string) (*GeneratedFileNode, bool) {
	if n.ctx2 == nil {
		return nil, false
	}
	for _, node := range n.ctx2.All() {
		if gf, ok := node.(*GeneratedFileNode); ok && gf.Path() == absPath {
			return gf, true
		}
	}
	return nil, false
}

func (n *CommandNode) repositoryFor(absPath string) (*FileRepository, bool) {
	if n.ctx2 == nil || n.ctx2.Repositories == nil {
		return nil, false
	}
	var best *FileRepository
	for _, repo := range n.ctx2.Repositories.All() {
		if strings.HasPrefix(absPath, repo.Dir+string(filepath.Separator)) || absPath == repo.Dir {
			if best == nil || len(repo.Dir) > len(best.Dir) {
				best = repo
			}
		}
	}
	return best, best != nil
}

func (n *CommandNode) findOrCreateSourceFile(absPath string) (*SourceFileNode, bool) {
	repo, _ := n.repositoryFor(absPath)
	name := absPath
	if repo != nil {
		rel := strings.TrimPrefix(absPath, repo.Dir)
		name = repo.Name + rel
	}
	if existing, ok := n.ctx2.Lookup(name); ok {
		if sf, ok := existing.(*SourceFileNode); ok {
			return sf, false
		}
	}
	return NewSourceFileNode(n.ctx2, name, absPath, n.fs, n.aspects), true
}

func (n *CommandNode) Commit(result *SelfResult) error {
	n.mu.Lock()
	if h, ok := result.Hashes["execution"]; ok {
		n.executionHash = h
	}
	for _, pc := range result.PreCommit {
		if sf, ok := pc.(*SourceFileNode); ok {
			n.inputs[sf.Path()] = sf
		}
	}
	outputs := make([]*GeneratedFileNode, len(n.Outputs))
	copy(outputs, n.Outputs)
	n.mu.Unlock()

	for _, writePath := range result.Outputs {
		for _, o := range outputs {
			if o.Path() == writePath {
				if err := o.Rehash(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Inputs returns a snapshot of the learned source-file inputs.
func (n *CommandNode) Inputs() map[string]*SourceFileNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]*SourceFileNode, len(n.inputs))
	for k, v := range n.inputs {
		out[k] = v
	}
	return out
}

func (n *CommandNode) ExecutionHash() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.executionHash
}
