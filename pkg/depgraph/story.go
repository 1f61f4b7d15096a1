// Package depgraph builds and validates the dependency graph over a run's
// stories, and computes which stories are ready to dispatch given a set of
// already-completed story IDs.
package depgraph

// Story is one unit of scheduled work. Fields mirror the user_stories
// entries loaded from a PRD file.
type Story struct {
	ID           string
	Title        string
	Priority     int
	Passes       bool
	TargetFiles  []string
	DependsOn    []string
}

// Clone returns a deep copy of s, safe to mutate independently.
func (s Story) Clone() Story {
	clone := s
	clone.TargetFiles = append([]string(nil), s.TargetFiles...)
	clone.DependsOn = append([]string(nil), s.DependsOn...)
	return clone
}
