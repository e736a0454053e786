// Package graph implements the node graph and uniform execution protocol at
// the heart of the build engine: a heterogeneous set of node variants
// (source files, source directories, commands, groups, ...) sharing one
// lifecycle state machine, scheduled by a single main thread and a worker
// pool (see internal/sched).
package graph

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/xerrors"

	"github.com/yam-build/yam/internal/trace"
)

// State is one of the terminal or transitional states a node occupies.
type State int

const (
	// Dirty means the node must re-execute before it can be considered
	// up to date.
	Dirty State = iota
	// Executing means a start() is in progress.
	Executing
	// Ok means the last execution succeeded.
	Ok
	// Failed means the last execution errored.
	Failed
	// Canceled means the last execution was aborted.
	Canceled
	// Deleted means the node is pending removal from persistent state.
	Deleted
)

func (s State) String() string {
	switch s {
	case Dirty:
		return "Dirty"
	case Executing:
		return "Executing"
	case Ok:
		return "Ok"
	case Failed:
		return "Failed"
	case Canceled:
		return "Canceled"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Phase is only meaningful while a node is Executing.
type Phase int

const (
	Idle Phase = iota
	Suspended
	Prerequisites
	Self
	PreCommit
	Postrequisites
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Suspended:
		return "Suspended"
	case Prerequisites:
		return "Prerequisites"
	case Self:
		return "Self"
	case PreCommit:
		return "PreCommit"
	case Postrequisites:
		return "Postrequisites"
	default:
		return "Unknown"
	}
}

// SelfResult is what a node's Self phase hands back to the main thread.
type SelfResult struct {
	State        State
	PreCommit    []Node
	Outputs      []string
	Hashes       map[string]uint64
	Err          error
}

// Hooks are the phase overrides a concrete node variant supplies. Base
// dispatches into Hooks at the appropriate phase boundary; a variant that
// has nothing to do in a given phase simply returns zero values.
type Hooks interface {
	// PendingStartSelf reports whether Self must run: false means the
	// node's execution hash already matches the persisted one and no
	// declared input is dirty, so Self can be skipped entirely.
	PendingStartSelf() bool

	// ExecuteSelf performs the node-specific work on a worker goroutine.
	// It must not mutate any other node's fields.
	ExecuteSelf(ctx context.Context) *SelfResult

	// Commit applies a successful SelfResult's effects to the node's own
	// fields. Called after PreCommit nodes succeed, on the goroutine that
	// finished the Self phase, or on the goroutine that waited for the
	// PreCommit nodes; it is not posted to the main queue. A
	// non-nil error (e.g. a declared output that vanished between Self and
	// commit) fails the node instead of marking it Ok.
	Commit(result *SelfResult) error
}

// Node is the uniform interface every graph entity satisfies.
type Node interface {
	Name() string
	State() State
	Phase() Phase
	Modified() bool

	Start(ctx context.Context)
	Cancel()
	Suspend()
	Resume()

	SetDirty()

	AddPrerequisite(n Node)
	AddPostrequisite(n Node)
	RemovePrerequisite(name string)

	OnCompletion(f func(Node))
}

// Base implements Node and is embedded by every concrete variant. Fields
// are main-thread-only except where noted; see spec §5 for the concurrency
// model this enforces.
type Base struct {
	mu sync.Mutex

	name  string
	ctx   *ExecutionContext
	hooks Hooks

	state State
	phase Phase

	dirty    bool
	modified bool

	prerequisites  map[string]Node
	postrequisites map[string]Node
	precommit      map[string]Node
	dependants     map[string]Node // reverse of prerequisites
	postParents    map[string]Node // reverse of postrequisites

	outstanding int
	failedChild bool
	cancelReq   bool

	resumeCh    chan struct{}
	completions []func(Node)
}

// NewBase constructs a Base bound to ctx and hooks, registering it in the
// context's node table. name is the node's symbolic (repository-relative)
// path.
func NewBase(ctx *ExecutionContext, name string, hooks Hooks) *Base {
	b := &Base{
		name:           name,
		ctx:            ctx,
		hooks:          hooks,
		state:          Dirty,
		phase:          Idle,
		dirty:          true,
		prerequisites:  make(map[string]Node),
		postrequisites: make(map[string]Node),
		precommit:      make(map[string]Node),
		dependants:     make(map[string]Node),
		postParents:    make(map[string]Node),
	}
	if ctx != nil {
		ctx.register(name, b)
	}
	return b
}

func (b *Base) Name() string { return b.name }

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

func (b *Base) Modified() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modified
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// SetDirty marks the node Dirty and cascades to every registered dependant,
// per the observer-pattern invariant in spec §3.1.
func (b *Base) SetDirty() {
	b.mu.Lock()
	if b.dirty && b.state == Dirty {
		b.mu.Unlock()
		return
	}
	b.dirty = true
	b.state = Dirty
	deps := make([]Node, 0, len(b.dependants))
	for _, d := range b.dependants {
		deps = append(deps, d)
	}
	b.mu.Unlock()

	for _, d := range deps {
		d.SetDirty()
	}
}

// AddPrerequisite registers n as a prerequisite of b and registers b as a
// dependant of n so that n going Dirty propagates back to b.
func (b *Base) AddPrerequisite(n Node) {
	b.mu.Lock()
	b.prerequisites[n.Name()] = n
	b.mu.Unlock()
	if back, ok := n.(interface{ addDependant(Node) }); ok {
		back.addDependant(b)
	}
}

func (b *Base) RemovePrerequisite(name string) {
	b.mu.Lock()
	n, ok := b.prerequisites[name]
	delete(b.prerequisites, name)
	b.mu.Unlock()
	if ok {
		if back, ok := n.(interface{ removeDependant(string) }); ok {
			back.removeDependant(b.name)
		}
	}
}

func (b *Base) addDependant(n Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dependants[n.Name()] = n
}

func (b *Base) removeDependant(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.dependants, name)
}

// AddPostrequisite registers n as a post-requisite of b: n must run (if
// dirty) after b's Self succeeds.
func (b *Base) AddPostrequisite(n Node) {
	b.mu.Lock()
	b.postrequisites[n.Name()] = n
	b.mu.Unlock()
	if back, ok := n.(interface{ addPostParent(Node) }); ok {
		back.addPostParent(b)
	}
}

func (b *Base) addPostParent(n Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.postParents[n.Name()] = n
}

// addPreCommit registers n as discovered during Self; the owner must reach
// Ok before Self's effects commit.
func (b *Base) addPreCommit(n Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.precommit[n.Name()] = n
}

func (b *Base) OnCompletion(f func(Node)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completions = append(b.completions, f)
}

func (b *Base) sortedPrerequisites() []Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedValues(b.prerequisites)
}

func (b *Base) sortedPostrequisites() []Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedValues(b.postrequisites)
}

func (b *Base) sortedPreCommit() []Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedValues(b.precommit)
}

func sortedValues(m map[string]Node) []Node {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Node, 0, len(names))
	for _, n := range names {
		out = append(out, m[n])
	}
	return out
}

// Start begins execution. Precondition: state == Dirty and the node is not
// already executing; violating this is a programming error.
func (b *Base) Start(ctx context.Context) {
	b.mu.Lock()
	if b.state != Dirty {
		b.mu.Unlock()
		return
	}
	b.state = Executing
	b.cancelReq = false
	b.failedChild = false
	suspended := b.phase == Suspended && b.resumeCh != nil
	b.mu.Unlock()

	if suspended {
		return // resume() will continue
	}
	b.continueStart(ctx)
}

func (b *Base) continueStart(ctx context.Context) {
	b.mu.Lock()
	b.phase = Prerequisites
	prereqs := b.sortedPrerequisitesLocked()
	b.mu.Unlock()
	b.runPrerequisites(ctx, prereqs)
}

func (b *Base) sortedPrerequisitesLocked() []Node {
	return sortedValues(b.prerequisites)
}

// Suspend may only be invoked when not executing; it gates the transition
// out of Suspended until Resume is called.
func (b *Base) Suspend() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Executing {
		return
	}
	b.phase = Suspended
	b.resumeCh = make(chan struct{})
}

// Resume releases a Suspend() and, if a Start() was issued meanwhile,
// proceeds into the Prerequisites phase.
func (b *Base) Resume() {
	b.mu.Lock()
	ch := b.resumeCh
	b.resumeCh = nil
	executing := b.state == Executing
	b.mu.Unlock()
	if ch != nil {
		close(ch)
	}
	if executing {
		b.continueStart(context.Background())
	}
}

// Cancel signals the node to abort. It cascades to the child set of the
// currently active phase. Cancelling an idle node is a no-op.
func (b *Base) Cancel() {
	b.mu.Lock()
	if b.state != Executing {
		b.mu.Unlock()
		return
	}
	b.cancelReq = true
	phase := b.phase
	var children []Node
	switch phase {
	case Prerequisites:
		children = sortedValues(b.prerequisites)
	case PreCommit:
		children = sortedValues(b.precommit)
	case Postrequisites:
		children = sortedValues(b.postrequisites)
	}
	b.mu.Unlock()
	for _, c := range children {
		c.Cancel()
	}
}

func (b *Base) runPrerequisites(ctx context.Context, prereqs []Node) {
	if len(prereqs) == 0 {
		b.startSelf(ctx)
		return
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := false
	canceled := false
	for _, p := range prereqs {
		wg.Add(1)
		p.OnCompletion(func(n Node) {
			defer wg.Done()
			mu.Lock()
			switch n.State() {
			case Failed:
				failed = true
			case Canceled:
				canceled = true
			}
			mu.Unlock()
		})
		if p.State() == Dirty {
			p.Start(ctx)
		}
		// Executing or already-terminal prerequisites are simply
		// waited upon via the completion callback registered above;
		// a node that had already completed never fires a callback
		// added afterwards, so that case is accounted for below.
		if st := p.State(); st != Dirty && st != Executing {
			// terminal already: emulate a completion notification
			// so the waitgroup accounting stays correct even for
			// nodes that finished (or never needed to run) before
			// we attached our callback.
			wg.Done()
			mu.Lock()
			switch st {
			case Failed:
				failed = true
			case Canceled:
				canceled = true
			}
			mu.Unlock()
		}
	}
	go func() {
		wg.Wait()
		b.mu.Lock()
		cancelReq := b.cancelReq
		b.mu.Unlock()
		switch {
		case cancelReq:
			b.completePhase(ctx, Canceled)
		case failed:
			// A keep-going build lets siblings already in flight run to
			// completion instead of cancelling them on the first failure
			// (spec §4.1 step 1).
			if b.ctx == nil || b.ctx.Log == nil || !b.ctx.Log.KeepGoing() {
				for _, p := range prereqs {
					p.Cancel()
				}
			}
			b.completePhase(ctx, Failed)
		case canceled:
			b.completePhase(ctx, Canceled)
		default:
			b.startSelf(ctx)
		}
	}()
}

func (b *Base) startSelf(ctx context.Context) {
	b.mu.Lock()
	b.phase = Self
	cancelReq := b.cancelReq
	b.mu.Unlock()
	if cancelReq {
		b.completePhase(ctx, Canceled)
		return
	}

	if !b.hooks.PendingStartSelf() {
		if b.ctx != nil {
			b.ctx.Stats.RecordSkipped()
		}
		b.finishSelf(ctx, &SelfResult{State: Ok})
		return
	}
	if b.ctx != nil {
		b.ctx.Stats.RecordExecuted()
	}

	span := trace.NodePhase(b.name, "Self", b.ctx != nil && b.ctx.Workers != nil, 0)
	submit := func() {
		result := b.hooks.ExecuteSelf(ctx)
		span.Done()
		b.finishSelf(ctx, result)
	}
	if b.ctx != nil && b.ctx.Workers != nil {
		b.ctx.Workers.Submit(submit)
	} else {
		go submit()
	}
}

func (b *Base) finishSelf(ctx context.Context, result *SelfResult) {
	if result == nil {
		result = &SelfResult{State: Failed, Err: xerrors.Errorf("%s: nil self result", b.name)}
	}
	if result.State == Failed || result.Err != nil {
		b.completePhase(ctx, Failed)
		return
	}
	b.runPreCommit(ctx, result)
}

func (b *Base) runPreCommit(ctx context.Context, result *SelfResult) {
	b.mu.Lock()
	b.phase = PreCommit
	for _, n := range result.PreCommit {
		b.precommit[n.Name()] = n
	}
	precommit := sortedValues(b.precommit)
	b.mu.Unlock()

	if len(precommit) == 0 {
		b.commitAndContinue(ctx, result)
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := false
	for _, p := range precommit {
		wg.Add(1)
		p.OnCompletion(func(n Node) {
			defer wg.Done()
			if n.State() == Failed || n.State() == Canceled {
				mu.Lock()
				failed = true
				mu.Unlock()
			}
		})
		if p.State() == Dirty {
			p.Start(ctx)
		} else if st := p.State(); st != Executing {
			wg.Done()
			if st == Failed || st == Canceled {
				mu.Lock()
				failed = true
				mu.Unlock()
			}
		}
	}
	go func() {
		wg.Wait()
		mu.Lock()
		f := failed
		mu.Unlock()
		if f {
			b.completePhase(ctx, Failed)
			return
		}
		b.commitAndContinue(ctx, result)
	}()
}

func (b *Base) commitAndContinue(ctx context.Context, result *SelfResult) {
	if err := b.hooks.Commit(result); err != nil {
		result.Err = err
		b.completePhase(ctx, Failed)
		return
	}
	b.mu.Lock()
	b.modified = true
	b.mu.Unlock()
	b.runPostrequisites(ctx)
}

func (b *Base) runPostrequisites(ctx context.Context) {
	b.mu.Lock()
	b.phase = Postrequisites
	post := sortedValues(b.postrequisites)
	b.mu.Unlock()

	if len(post) == 0 {
		b.completePhase(ctx, Ok)
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := false
	for _, p := range post {
		wg.Add(1)
		p.OnCompletion(func(n Node) {
			defer wg.Done()
			if n.State() == Failed {
				mu.Lock()
				failed = true
				mu.Unlock()
			}
		})
		if p.State() == Dirty {
			p.Start(ctx)
		} else if st := p.State(); st != Executing {
			wg.Done()
			if st == Failed {
				mu.Lock()
				failed = true
				mu.Unlock()
			}
		}
	}
	go func() {
		wg.Wait()
		mu.Lock()
		f := failed
		mu.Unlock()
		if f {
			b.completePhase(ctx, Failed)
			return
		}
		b.completePhase(ctx, Ok)
	}()
}

// completePhase resets bookkeeping, applies the terminal state, and
// notifies observers. Per spec §4.1 step 5, this runs "on the main
// thread"; in this implementation the context's main queue serializes it.
func (b *Base) completePhase(ctx context.Context, state State) {
	notify := func() {
		if b.ctx != nil {
			switch state {
			case Failed:
				b.ctx.Stats.RecordFailed()
			case Canceled:
				b.ctx.Stats.RecordCanceled()
			}
		}
		b.mu.Lock()
		b.state = state
		b.phase = Idle
		if state == Ok {
			b.dirty = false
		}
		completions := b.completions
		b.completions = nil
		dependants := sortedValues(b.dependants)
		postParents := sortedValues(b.postParents)
		b.mu.Unlock()

		for _, f := range completions {
			f(b)
		}
		for _, d := range dependants {
			if notifier, ok := d.(interface{ handlePrerequisiteCompletion(Node) }); ok {
				notifier.handlePrerequisiteCompletion(b)
			}
		}
		for _, p := range postParents {
			if notifier, ok := p.(interface{ handlePostrequisiteCompletion(Node) }); ok {
				notifier.handlePostrequisiteCompletion(b)
			}
		}
	}
	if b.ctx != nil && b.ctx.Main != nil {
		b.ctx.Main.Post(notify)
	} else {
		notify()
	}
}

// handlePrerequisiteCompletion and handlePostrequisiteCompletion exist so
// that dependants implementing richer bookkeeping can hook in; no node
// type in this package overrides them, and Base itself relies entirely on the OnCompletion callback mechanism
// wired up in runPrerequisites/runPostrequisites, so these are no-ops here.
func (b *Base) handlePrerequisiteCompletion(Node)  {}
func (b *Base) handlePostrequisiteCompletion(Node) {}
