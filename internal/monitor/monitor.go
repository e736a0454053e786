package monitor

import "context"

// Monitor is the abstract monitoring contract (spec §4.5, §9 design
// notes): any implementation that can instrument a process so that every
// filesystem access made by it or a descendant is observed, classified,
// and associated with a canonical absolute path satisfies it. Strategies
// may hook OS APIs, use a tracer, or rely on an OS tracing facility — the
// core only consumes the resulting Report.
type Monitor interface {
	// Run launches req under monitoring, waits for the process and all
	// descendants to exit (respecting req.Timeout and ctx cancellation),
	// and returns the access report.
	Run(ctx context.Context, req Request) (*Report, error)
}

// filterPath reports whether an observed path should be excluded from the
// reported access sets: paths inside the process's temp directory and glob
// patterns from directory-iteration APIs. Non-regular files are dropped
// separately, where linux.go records an access.
func filterPath(path, tempDir string) bool {
	if tempDir != "" && hasPrefixPath(path, tempDir) {
		return true
	}
	if containsGlobMeta(path) {
		return true
	}
	return false
}

func hasPrefixPath(path, prefix string) bool {
	if len(path) < len(prefix) || path[:len(prefix)] != prefix {
		return false
	}
	return len(path) == len(prefix) || prefix[len(prefix)-1] == '/' || path[len(prefix)] == '/'
}

func containsGlobMeta(path string) bool {
	for _, r := range path {
		switch r {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// splitReadOnly computes reads \ writes, preserving input order.
func splitReadOnly(reads, writes []string) []string {
	writeSet := make(map[string]bool, len(writes))
	for _, w := range writes {
		writeSet[w] = true
	}
	out := make([]string, 0, len(reads))
	for _, r := range reads {
		if !writeSet[r] {
			out = append(out, r)
		}
	}
	return out
}
