package fwpm

// releaseScope collects release actions for resources acquired during a
// single call and runs them in reverse registration order when the call
// exits. Callers arrange `defer scope.exit()` immediately after creating
// the scope so release fires on every path out of the call.
type releaseScope struct {
	actions []func()
}

// onExit registers a release action. Actions run last-in first-out.
func (s *releaseScope) onExit(release func()) {
	s.actions = append(s.actions, release)
}

// exit runs the registered actions in reverse order. A second exit is a
// no-op, so a scope can be released early and still be safely deferred.
func (s *releaseScope) exit() {
	for i := len(s.actions) - 1; i >= 0; i-- {
		s.actions[i]()
	}
	s.actions = nil
}
