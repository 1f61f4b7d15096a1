package reconcile

import "strings"

// StoryFiles is the minimal view of a story needed to map it against
// reconciliation issues: its ID and the files it targets.
type StoryFiles struct {
	ID          string
	TargetFiles []string
}

// AffectedStories maps reconciliation issues onto the batch's story ids.
// GitConflict and TypeMismatch issues are resolved by substring overlap
// (either direction) between a story's target files and the issue's
// affected file(s). ImportDuplicate, or any issue set that couldn't be
// mapped to a specific file, conservatively marks every batch member
// affected, since a worst-case retry of the whole batch is cheaper than a
// missed conflict surviving into the next batch.
func AffectedStories(issues []Issue, batchStoryIDs []string, stories map[string]StoryFiles) []string {
	affectedFiles := make(map[string]struct{})

	for _, issue := range issues {
		switch issue.Kind {
		case KindGitConflict:
			for _, f := range issue.AffectedFiles {
				affectedFiles[f] = struct{}{}
			}
		case KindTypeMismatch:
			if issue.File != "" && issue.File != "unknown" {
				affectedFiles[issue.File] = struct{}{}
			}
		case KindImportDuplicate:
			return append([]string(nil), batchStoryIDs...)
		}
	}

	if len(affectedFiles) == 0 {
		return append([]string(nil), batchStoryIDs...)
	}

	var affected []string
	for _, storyID := range batchStoryIDs {
		story, ok := stories[storyID]
		if !ok {
			continue
		}
		if storyOverlapsAny(story, affectedFiles) {
			affected = append(affected, storyID)
		}
	}

	if len(affected) == 0 {
		return append([]string(nil), batchStoryIDs...)
	}
	return affected
}

func storyOverlapsAny(story StoryFiles, affectedFiles map[string]struct{}) bool {
	for _, target := range story.TargetFiles {
		for affected := range affectedFiles {
			if strings.Contains(target, affected) || strings.Contains(affected, target) {
				return true
			}
		}
	}
	return false
}
