package depgraph

import (
	"encoding/json"
	"fmt"
	"os"
)

// storyDoc mirrors the on-disk JSON shape of one story entry. Parsing the
// surrounding product-requirement document (headings, acceptance criteria,
// free text) is an explicit non-goal of this package; this loader only
// decodes the flat `user_stories` array a PRD-authoring collaborator emits.
type storyDoc struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Priority    int      `json:"priority"`
	Passes      bool     `json:"passes"`
	TargetFiles []string `json:"target_files"`
	DependsOn   []string `json:"depends_on"`
}

type prdDoc struct {
	UserStories []storyDoc `json:"user_stories"`
}

// LoadStories reads the story set at path (a JSON document with a top-level
// `user_stories` array) and returns it as depgraph.Story values.
func LoadStories(path string) ([]Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("depgraph: read %s: %w", path, err)
	}

	var doc prdDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("depgraph: parse %s: %w", path, err)
	}
	if len(doc.UserStories) == 0 {
		return nil, fmt.Errorf("depgraph: %s has no user_stories", path)
	}

	stories := make([]Story, 0, len(doc.UserStories))
	seen := make(map[string]struct{}, len(doc.UserStories))
	for _, d := range doc.UserStories {
		if d.ID == "" {
			return nil, fmt.Errorf("depgraph: %s contains a story with an empty id", path)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("depgraph: %s contains duplicate story id %q", path, d.ID)
		}
		seen[d.ID] = struct{}{}

		stories = append(stories, Story{
			ID:          d.ID,
			Title:       d.Title,
			Priority:    d.Priority,
			Passes:      d.Passes,
			TargetFiles: d.TargetFiles,
			DependsOn:   d.DependsOn,
		})
	}
	return stories, nil
}
