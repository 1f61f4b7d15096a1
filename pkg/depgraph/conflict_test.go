package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConflicts_NoOverlap(t *testing.T) {
	stories := []Story{
		{ID: "US-001", Priority: 1, TargetFiles: []string{"src/a.rs"}},
		{ID: "US-002", Priority: 2, TargetFiles: []string{"src/b.rs"}},
	}
	assert.Empty(t, DetectConflicts(stories))
}

func TestDetectConflicts_WithOverlap_LowerPriorityDeferred(t *testing.T) {
	stories := []Story{
		{ID: "US-001", Priority: 1, TargetFiles: []string{"src/shared.rs"}},
		{ID: "US-002", Priority: 2, TargetFiles: []string{"src/shared.rs"}},
	}
	conflicts := DetectConflicts(stories)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "US-002", conflicts[0].Deferred)
	assert.Equal(t, "US-001", conflicts[0].Blocking)
	assert.Equal(t, []string{"src/shared.rs"}, conflicts[0].Files)
}

func TestDetectConflicts_SamePriority_LexicographicTiebreak(t *testing.T) {
	stories := []Story{
		{ID: "US-001", Priority: 1, TargetFiles: []string{"src/shared.rs"}},
		{ID: "US-002", Priority: 1, TargetFiles: []string{"src/shared.rs"}},
	}
	conflicts := DetectConflicts(stories)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "US-002", conflicts[0].Deferred)
	assert.Equal(t, "US-001", conflicts[0].Blocking)
}

func TestFilterConflicting_RemovesDeferredOnly(t *testing.T) {
	stories := []Story{
		{ID: "US-001", Priority: 1, TargetFiles: []string{"src/shared.rs"}},
		{ID: "US-002", Priority: 2, TargetFiles: []string{"src/shared.rs"}},
		{ID: "US-003", Priority: 3, TargetFiles: []string{"src/other.rs"}},
	}
	filtered, conflicts := FilterConflicting(stories)

	require.Len(t, filtered, 2)
	ids := []string{filtered[0].ID, filtered[1].ID}
	assert.Contains(t, ids, "US-001")
	assert.Contains(t, ids, "US-003")
	assert.NotContains(t, ids, "US-002")

	assert.Len(t, conflicts, 1)
}
