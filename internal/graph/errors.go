package graph

import "golang.org/x/xerrors"

// Error kinds from the error-handling design. Each is a distinct sentinel so
// callers can errors.Is() against it after a node wraps it with file/line
// context via xerrors.Errorf.
var (
	// ErrInputDomain covers ill-formed build files, invalid repository
	// config, and non-existent repository directories.
	ErrInputDomain = xerrors.New("input-domain error")

	// ErrBuildRuleViolation covers undeclared writes, missing declared
	// outputs, reads outside any known repository, and dependency cycles.
	ErrBuildRuleViolation = xerrors.New("build-rule violation")

	// ErrScriptFailure covers a non-zero exit from a monitored process.
	ErrScriptFailure = xerrors.New("script failed")

	// ErrFilesystemFault covers directory enumeration, stat, and process
	// launch failures unrelated to the script's own exit status.
	ErrFilesystemFault = xerrors.New("filesystem fault")

	// ErrStorageFault covers persistent-state commit and retrieval failures.
	ErrStorageFault = xerrors.New("storage fault")

	// ErrProtocol covers unexpected client/service messages and
	// mid-build disconnects.
	ErrProtocol = xerrors.New("protocol error")
)

// BuildError attaches the failing node's name and the error kind to an
// underlying error so the terminal BuildResult can report what went wrong
// without re-parsing error strings.
type BuildError struct {
	Node string
	Kind error
	Err  error
}

func (e *BuildError) Error() string {
	return xerrors.Errorf("%s: %s: %w", e.Node, e.Kind, e.Err).Error()
}

func (e *BuildError) Unwrap() error { return e.Err }

func (e *BuildError) Is(target error) bool {
	return xerrors.Is(e.Kind, target)
}

// Failf constructs a BuildError for node, wrapping err with kind.
func Failf(node string, kind error, format string, args ...interface{}) *BuildError {
	return &BuildError{
		Node: node,
		Kind: kind,
		Err:  xerrors.Errorf(format, args...),
	}
}
