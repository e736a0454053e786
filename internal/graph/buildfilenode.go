package graph

import (
	"context"
	"sync"

	"github.com/spf13/afero"

	"github.com/yam-build/yam/internal/buildfile"
	"github.com/yam-build/yam/internal/hashing"
	"github.com/yam-build/yam/internal/monitor"
)

// BuildFileParserNode parses one build file; its Self output is the
// parsed AST, re-parsed whenever the underlying SourceFileNode goes dirty
// (spec §3.1 "BuildFile parser").
type BuildFileParserNode struct {
	*Base

	source *SourceFileNode
	fs     afero.Fs

	mu  sync.Mutex
	ast *buildfile.File
}

func NewBuildFileParserNode(ctx *ExecutionContext, name string, source *SourceFileNode, fs afero.Fs) *BuildFileParserNode {
	n := &BuildFileParserNode{source: source, fs: fs}
	n.Base = NewBase(ctx, name, n)
	n.AddPrerequisite(source)
	return n
}

func (n *BuildFileParserNode) PendingStartSelf() bool { return true }

func (n *BuildFileParserNode) ExecuteSelf(ctx context.Context) *SelfResult {
	data, err := afero.ReadFile(n.fs, n.source.Path())
	if err != nil {
		return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrFilesystemFault, "reading %s: %w", n.source.Path(), err)}
	}
	ast, err := buildfile.Parse(string(data))
	if err != nil {
		return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrInputDomain, "%s: %w", n.source.Path(), err)}
	}
	n.mu.Lock()
	n.ast = ast
	n.mu.Unlock()
	return &SelfResult{State: Ok}
}

func (n *BuildFileParserNode) Commit(result *SelfResult) error { return nil }

func (n *BuildFileParserNode) AST() *buildfile.File {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ast
}

// graphResolver resolves buildfile.Pattern references against the live
// node graph: globs against the mirror's filesystem, <groups> against
// registered GroupNodes, {bins} against a fixed lookup table supplied at
// compiler-node construction (binaries made available to the build, e.g.
// toolchain executables).
type graphResolver struct {
	fs      afero.Fs
	baseDir string
	ctx     *ExecutionContext
	bins    map[string][]string
}

func (r *graphResolver) Glob(pattern string) ([]string, error) {
	full := pattern
	if !isAbs(pattern) {
		full = r.baseDir + "/" + pattern
	}
	return afero.Glob(r.fs, full)
}

func (r *graphResolver) Group(name string) ([]string, error) {
	if n, ok := r.ctx.Lookup(name); ok {
		if g, ok := n.(*GroupNode); ok {
			out := make([]string, 0, len(g.Members()))
			for memberName := range g.Members() {
				out = append(out, memberName)
			}
			return out, nil
		}
	}
	return nil, Failf(name, ErrInputDomain, "unknown group %q", name)
}

func (r *graphResolver) Bin(name string) ([]string, error) {
	if paths, ok := r.bins[name]; ok {
		return paths, nil
	}
	return nil, Failf(name, ErrInputDomain, "unknown bin %q", name)
}

func isAbs(p string) bool {
	return len(p) > 0 && p[0] == '/'
}

// BuildFileCompilerNode compiles a parsed build file's rules into command
// nodes, binding outputs to GeneratedFileNodes and registering producer
// back-references (spec §4.7's compilation step).
type BuildFileCompilerNode struct {
	*Base

	parser  *BuildFileParserNode
	ctx2    *ExecutionContext
	fs      afero.Fs
	aspects *hashing.Set
	mon     monitor.Monitor
	baseDir string
	bins    map[string][]string

	mu       sync.Mutex
	commands []*CommandNode
	warnings []buildfile.Warning
}

func NewBuildFileCompilerNode(ctx *ExecutionContext, name string, parser *BuildFileParserNode, fs afero.Fs, aspects *hashing.Set, mon monitor.Monitor, baseDir string, bins map[string][]string) *BuildFileCompilerNode {
	n := &BuildFileCompilerNode{parser: parser, ctx2: ctx, fs: fs, aspects: aspects, mon: mon, baseDir: baseDir, bins: bins}
	n.Base = NewBase(ctx, name, n)
	n.AddPrerequisite(parser)
	return n
}

func (n *BuildFileCompilerNode) PendingStartSelf() bool { return true }

func (n *BuildFileCompilerNode) ExecuteSelf(ctx context.Context) *SelfResult {
	ast := n.parser.AST()
	if ast == nil {
		return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrInputDomain, "compiler ran before parser produced an AST")}
	}
	resolver := &graphResolver{fs: n.fs, baseDir: n.baseDir, ctx: n.ctx2, bins: n.bins}
	compiled, warnings, err := buildfile.Compile(ast, resolver)
	if err != nil {
		return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrInputDomain, "%w", err)}
	}

	var commands []*CommandNode
	var precommit []Node
	for i, c := range compiled {
		cmdName := ruleNodeName(n.Name(), i)
		cmd := NewCommandNode(n.ctx2, cmdName, c.Script, n.baseDir, n.fs, n.aspects, n.mon)
		for _, out := range c.Outputs {
			gen := NewGeneratedFileNode(n.ctx2, out, out, n.fs, n.aspects, cmd)
			cmd.DeclareOutput(gen)
		}
		commands = append(commands, cmd)
		precommit = append(precommit, cmd)
	}

	n.mu.Lock()
	n.warnings = warnings
	n.mu.Unlock()
	if n.ctx2 != nil {
		for _, w := range warnings {
			n.ctx2.logf(n.Name(), "progress", "line %d: %s", w.Rule.Line, w.Message)
		}
	}

	return &SelfResult{State: Ok, PreCommit: precommit}
}

func (n *BuildFileCompilerNode) Commit(result *SelfResult) error {
	var commands []*CommandNode
	for _, pc := range result.PreCommit {
		if cmd, ok := pc.(*CommandNode); ok {
			commands = append(commands, cmd)
		}
	}
	n.mu.Lock()
	n.commands = commands
	n.mu.Unlock()
	return nil
}

func (n *BuildFileCompilerNode) Commands() []*CommandNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*CommandNode, len(n.commands))
	copy(out, n.commands)
	return out
}

func (n *BuildFileCompilerNode) Warnings() []buildfile.Warning {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]buildfile.Warning, len(n.warnings))
	copy(out, n.warnings)
	return out
}

func ruleNodeName(compilerName string, index int) string {
	return compilerName + "#rule" + itoa(index)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
