package graph

import "sync"

// RepositoryType resolves the source's under-specified repository `type`
// field (spec §6, Open Question in §9) per
// original_source/core/FileRepository.cpp: it gates scheduling eligibility
// and cross-repository dirty propagation, nothing more (SPEC_FULL.md §4.13).
type RepositoryType int

const (
	// Integrated repositories fully participate: mirrored, scheduled, and
	// eligible as declared build inputs.
	Integrated RepositoryType = iota
	// Coupled repositories may mark nodes dirty in another repository only
	// when that repository names them in its Inputs (see CanPropagateTo).
	Coupled
	// Tracked repositories are mirrored and readable but their files may
	// never be declared (or learned) build inputs.
	Tracked
	// Ignored repositories are mirrored but excluded from scheduling
	// entirely: they never appear in a scope root's dirty walk.
	Ignored
)

func (t RepositoryType) String() string {
	switch t {
	case Integrated:
		return "Integrated"
	case Coupled:
		return "Coupled"
	case Tracked:
		return "Tracked"
	case Ignored:
		return "Ignored"
	default:
		return "Unknown"
	}
}

// FileRepository pairs a symbolic name (the `name` prefix used to qualify
// every node path rooted in it) with an absolute physical directory.
type FileRepository struct {
	Name string
	Dir  string
	Type RepositoryType

	// Inputs lists the Coupled repositories this repository may read from.
	// CanPropagateTo consults it whatever this repository's own Type is.
	Inputs []string

	Root Node // the repository's root SourceDirNode, set once constructed
}

// SchedulingEligible reports whether this repository's nodes should be
// included when a scope root walks the graph for dirty work.
func (r *FileRepository) SchedulingEligible() bool {
	return r.Type != Ignored
}

// InputEligible reports whether files in this repository may be declared
// or learned as build inputs.
func (r *FileRepository) InputEligible() bool {
	return r.Type != Tracked && r.Type != Ignored
}

// Repositories is the registry of all repositories for a build. "." is
// reserved for the home repository.
type Repositories struct {
	mu    sync.RWMutex
	byName map[string]*FileRepository
}

// HomeRepositoryName is the reserved name for the repository containing the
// top-level build invocation.
const HomeRepositoryName = "."

func NewRepositories() *Repositories {
	return &Repositories{byName: make(map[string]*FileRepository)}
}

func (r *Repositories) Add(repo *FileRepository) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[repo.Name]; exists {
		return Failf(repo.Name, ErrInputDomain, "duplicate repository name %q", repo.Name)
	}
	r.byName[repo.Name] = repo
	return nil
}

func (r *Repositories) Get(name string) (*FileRepository, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	repo, ok := r.byName[name]
	return repo, ok
}

func (r *Repositories) Home() (*FileRepository, bool) {
	return r.Get(HomeRepositoryName)
}

// All returns every registered repository.
func (r *Repositories) All() []*FileRepository {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*FileRepository, 0, len(r.byName))
	for _, repo := range r.byName {
		out = append(out, repo)
	}
	return out
}

// CanPropagateTo reports whether a dirty event in repository `from` is
// allowed to cross into repository `to`, per the Coupled semantics.
func CanPropagateTo(from, to *FileRepository) bool {
	if from == to {
		return true
	}
	if from.Type == Coupled {
		for _, dep := range to.Inputs {
			if dep == from.Name {
				return true
			}
		}
	}
	return from.Type == Integrated && to.Type == Integrated
}
