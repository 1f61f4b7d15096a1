package scheduler

import "sync"

// RunState tracks which stories are in flight, finished, or failed, and
// which files are currently locked by an in-flight story. All mutation goes
// through AcquireLocks/ReleaseLocks and the mark/remove helpers below so the
// file-exclusivity and terminal-event invariants hold under concurrent
// dispatch.
type RunState struct {
	mu          sync.Mutex
	inFlight    map[string]struct{}
	completed   map[string]struct{}
	failed      map[string]struct{}
	lockedFiles map[string]string // file -> owning story ID
}

// NewRunState returns an empty state.
func NewRunState() *RunState {
	return &RunState{
		inFlight:    make(map[string]struct{}),
		completed:   make(map[string]struct{}),
		failed:      make(map[string]struct{}),
		lockedFiles: make(map[string]string),
	}
}

// AcquireLocks attempts to lock every file in targetFiles for storyID. It is
// all-or-nothing: if any file is already locked by a different story, no
// locks are taken and false is returned.
func (s *RunState) AcquireLocks(storyID string, targetFiles []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range targetFiles {
		if owner, locked := s.lockedFiles[f]; locked && owner != storyID {
			return false
		}
	}
	for _, f := range targetFiles {
		s.lockedFiles[f] = storyID
	}
	s.inFlight[storyID] = struct{}{}
	return true
}

// ReleaseLocks frees every file held by storyID and removes it from the
// in-flight set.
func (s *RunState) ReleaseLocks(storyID string, targetFiles []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range targetFiles {
		if s.lockedFiles[f] == storyID {
			delete(s.lockedFiles, f)
		}
	}
	delete(s.inFlight, storyID)
}

// MarkCompleted records storyID as finished successfully.
func (s *RunState) MarkCompleted(storyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[storyID] = struct{}{}
}

// MarkFailed records storyID as finished unsuccessfully.
func (s *RunState) MarkFailed(storyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[storyID] = struct{}{}
}

// RemoveFromOutcomes demotes storyID back to neither completed nor failed,
// so the reconciliation retry path can re-dispatch it.
func (s *RunState) RemoveFromOutcomes(storyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.completed, storyID)
	delete(s.failed, storyID)
}

// CompletedSnapshot returns a copy of the completed-ID set for feeding
// depgraph.Graph.GetReadyStories.
func (s *RunState) CompletedSnapshot() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.completed))
	for id := range s.completed {
		out[id] = struct{}{}
	}
	return out
}

// FailedSnapshot returns a copy of the failed-ID set. A story that has
// failed is never re-readied by the scheduler, even though depgraph's own
// readiness check only looks at the completed set.
func (s *RunState) FailedSnapshot() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.failed))
	for id := range s.failed {
		out[id] = struct{}{}
	}
	return out
}

// InFlightIDs returns a copy of the currently in-flight story IDs.
func (s *RunState) InFlightIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.inFlight))
	for id := range s.inFlight {
		out = append(out, id)
	}
	return out
}

// Counts returns the number of completed and failed stories recorded so far.
func (s *RunState) Counts() (completed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed), len(s.failed)
}

// Failed reports whether storyID is in the failed set.
func (s *RunState) Failed(storyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.failed[storyID]
	return ok
}

// AnyFailed reports whether any story has failed so far.
func (s *RunState) AnyFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failed) > 0
}
