// Package oninterrupt turns SIGINT into build cancellation (SPEC_FULL.md
// §4.12): the first Ctrl-C cancels the active build's scope root, exactly
// as a StopBuildRequest would (spec §4.10, Scenario 6); a second Ctrl-C
// force-exits, for a build stuck in an uninterruptible Self task.
package oninterrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Cancelable is the minimal surface oninterrupt needs from a build scope
// root — internal/graph.Node satisfies it.
type Cancelable interface {
	Cancel()
}

var (
	mu         sync.Mutex
	cancelable []Cancelable
	cleanups   []func()
	armed      bool
)

func init() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		for range c {
			mu.Lock()
			if armed {
				// second SIGINT: the first didn't get us out, give up.
				mu.Unlock()
				os.Exit(128 + int(syscall.SIGINT))
			}
			armed = true
			targets := append([]Cancelable(nil), cancelable...)
			fns := append([]func(){}, cleanups...)
			mu.Unlock()

			for _, t := range targets {
				t.Cancel()
			}
			for _, f := range fns {
				f()
			}
		}
	}()
}

// RegisterScopeRoot arms root.Cancel() to run on the next SIGINT. The
// returned func removes the registration once the build it guards has
// finished, so a later unrelated SIGINT doesn't re-cancel a stale root.
func RegisterScopeRoot(root Cancelable) (unregister func()) {
	mu.Lock()
	cancelable = append(cancelable, root)
	mu.Unlock()
	return func() {
		mu.Lock()
		defer mu.Unlock()
		out := cancelable[:0]
		for _, c := range cancelable {
			if c != root {
				out = append(out, c)
			}
		}
		cancelable = out
		armed = false
	}
}

// Register keeps the teacher's generic cleanup-callback mechanism
// available for process-level cleanup unrelated to a build's scope root
// (e.g. removing the service-port registry file on shutdown).
func Register(cb func()) {
	mu.Lock()
	defer mu.Unlock()
	cleanups = append(cleanups, cb)
}
