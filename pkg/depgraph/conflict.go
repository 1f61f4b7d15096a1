package depgraph

import "sort"

// Conflict pairs a deferred story with the higher-priority story it lost to.
// Deferred is always the story with the lower priority (the higher priority
// number); Blocking is the one that gets to run this batch. Files lists the
// target files the two stories share, for the "conflict deferred"
// observation the scheduler emits.
type Conflict struct {
	Deferred string
	Blocking string
	Files    []string
}

// DetectConflicts returns every pair of stories in the batch whose target
// files overlap, one pair per overlapping pair of stories. Priority numbers
// are lower-is-higher; same-priority pairs break ties lexicographically by
// ID, matching the scheduler's deterministic ordering guarantee.
func DetectConflicts(stories []Story) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(stories); i++ {
		for j := i + 1; j < len(stories); j++ {
			a, b := stories[i], stories[j]
			files := sharedTargetFiles(&a, &b)
			if len(files) == 0 {
				continue
			}
			deferred, blocking := resolvePriority(a, b)
			conflicts = append(conflicts, Conflict{Deferred: deferred, Blocking: blocking, Files: files})
		}
	}
	return conflicts
}

// sharedTargetFiles returns the target files a and b both claim, sorted for
// deterministic observation output.
func sharedTargetFiles(a, b *Story) []string {
	set := make(map[string]struct{}, len(a.TargetFiles))
	for _, f := range a.TargetFiles {
		set[f] = struct{}{}
	}
	var shared []string
	for _, f := range b.TargetFiles {
		if _, ok := set[f]; ok {
			shared = append(shared, f)
		}
	}
	sort.Strings(shared)
	return shared
}

// resolvePriority returns (deferredID, blockingID) for a conflicting pair:
// the story with the higher priority number (lower priority) is deferred.
// Equal priority breaks the tie lexicographically, deferring the larger ID.
func resolvePriority(a, b Story) (deferred, blocking string) {
	switch {
	case a.Priority > b.Priority:
		return a.ID, b.ID
	case b.Priority > a.Priority:
		return b.ID, a.ID
	case a.ID > b.ID:
		return a.ID, b.ID
	default:
		return b.ID, a.ID
	}
}

// FilterConflicting removes every deferred story from stories, returning the
// filtered batch (stable, original relative order preserved) plus the list
// of detected conflicts.
func FilterConflicting(stories []Story) ([]Story, []Conflict) {
	conflicts := DetectConflicts(stories)
	deferred := make(map[string]struct{}, len(conflicts))
	for _, c := range conflicts {
		deferred[c.Deferred] = struct{}{}
	}

	filtered := make([]Story, 0, len(stories))
	for _, s := range stories {
		if _, ok := deferred[s.ID]; ok {
			continue
		}
		filtered = append(filtered, s)
	}

	sort.SliceStable(conflicts, func(i, j int) bool { return conflicts[i].Deferred < conflicts[j].Deferred })
	return filtered, conflicts
}
