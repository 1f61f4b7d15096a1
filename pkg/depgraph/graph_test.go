package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReadyStories_NoDependencies(t *testing.T) {
	g := FromStories([]Story{
		{ID: "US-001", Priority: 1},
		{ID: "US-002", Priority: 2},
	})
	ready := g.GetReadyStories(map[string]struct{}{})
	assert.Len(t, ready, 2)
}

func TestGetReadyStories_RespectsDependencies(t *testing.T) {
	g := FromStories([]Story{
		{ID: "US-001", Priority: 1},
		{ID: "US-002", Priority: 2, DependsOn: []string{"US-001"}},
	})
	ready := g.GetReadyStories(map[string]struct{}{})
	require.Len(t, ready, 1)
	assert.Equal(t, "US-001", ready[0].ID)

	ready = g.GetReadyStories(map[string]struct{}{"US-001": {}})
	require.Len(t, ready, 1)
	assert.Equal(t, "US-002", ready[0].ID)
}

func TestGetReadyStories_SkipsAlreadyPassing(t *testing.T) {
	g := FromStories([]Story{
		{ID: "US-001", Priority: 1, Passes: true},
		{ID: "US-002", Priority: 2},
	})
	ready := g.GetReadyStories(map[string]struct{}{})
	require.Len(t, ready, 1)
	assert.Equal(t, "US-002", ready[0].ID)
}

func TestValidate_DetectsCycle(t *testing.T) {
	g := FromStories([]Story{
		{ID: "US-001", DependsOn: []string{"US-002"}},
		{ID: "US-002", DependsOn: []string{"US-001"}},
	})
	err := g.Validate()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestValidate_DetectsUnknownDependency(t *testing.T) {
	g := FromStories([]Story{
		{ID: "US-001", DependsOn: []string{"US-999"}},
	})
	err := g.Validate()
	assert.ErrorIs(t, err, ErrUnknownDependency)
}

func TestValidate_AcyclicPasses(t *testing.T) {
	g := FromStories([]Story{
		{ID: "US-001"},
		{ID: "US-002", DependsOn: []string{"US-001"}},
		{ID: "US-003", DependsOn: []string{"US-001", "US-002"}},
	})
	assert.NoError(t, g.Validate())
}

func TestInferDependencies_AddsEdgeForSharedFileByPriority(t *testing.T) {
	g := FromStories([]Story{
		{ID: "US-001", Priority: 1, TargetFiles: []string{"src/shared.go"}},
		{ID: "US-002", Priority: 2, TargetFiles: []string{"src/shared.go"}},
	})
	g.InferDependencies()

	low := g.GetStory("US-002")
	require.NotNil(t, low)
	assert.Contains(t, low.DependsOn, "US-001")

	high := g.GetStory("US-001")
	require.NotNil(t, high)
	assert.Empty(t, high.DependsOn)
}

func TestInferDependencies_NoEdgeWithoutOverlap(t *testing.T) {
	g := FromStories([]Story{
		{ID: "US-001", Priority: 1, TargetFiles: []string{"src/a.go"}},
		{ID: "US-002", Priority: 2, TargetFiles: []string{"src/b.go"}},
	})
	g.InferDependencies()
	assert.Empty(t, g.GetStory("US-002").DependsOn)
}
