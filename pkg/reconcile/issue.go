// Package reconcile inspects the working copy after a parallel batch
// completes, looking for cross-story corruption that per-story gates can't
// see: merge conflicts left behind by concurrent git operations, type
// errors introduced by combining otherwise-passing stories, or duplicate
// imports from independently generated edits.
package reconcile

// IssueKind identifies the shape of a reconciliation issue.
type IssueKind string

const (
	KindGitConflict    IssueKind = "git_conflict"
	KindTypeMismatch   IssueKind = "type_mismatch"
	KindImportDuplicate IssueKind = "import_duplicate"
)

// Issue is one problem found in the workspace. AffectedFiles is populated
// for GitConflict; File/Error for TypeMismatch; ImportDuplicate carries
// neither, since a duplicate import block can't be pinned to one file by
// inspection alone.
type Issue struct {
	Kind           IssueKind
	AffectedFiles  []string
	File           string
	Error          string
}

// GitConflictIssue builds a GitConflict issue over the given files.
func GitConflictIssue(affectedFiles []string) Issue {
	return Issue{Kind: KindGitConflict, AffectedFiles: affectedFiles}
}

// TypeMismatchIssue builds a TypeMismatch issue for one file.
func TypeMismatchIssue(file, errMsg string) Issue {
	return Issue{Kind: KindTypeMismatch, File: file, Error: errMsg}
}

// ImportDuplicateIssue builds an ImportDuplicate issue.
func ImportDuplicateIssue() Issue {
	return Issue{Kind: KindImportDuplicate}
}

// Result is the outcome of one reconciliation pass: either Clean, or a
// non-empty set of Issues.
type Result struct {
	Issues []Issue
}

// Clean reports whether the reconciliation pass found no issues.
func (r Result) Clean() bool {
	return len(r.Issues) == 0
}
