package intent

import (
	"sort"
	"strings"

	"github.com/gitlabassist/pkg/models"
)

// maxTypoDistance is the largest edit distance accepted for a fuzzy match.
const maxTypoDistance = 2

// actionSynonyms maps normalized spellings onto the vocabulary. Keys are in
// the form produced by normalizeKey: lower case, single spaces.
var actionSynonyms = map[string]models.ActionName{
	"read file":    models.ActionReadFile,
	"show file":    models.ActionReadFile,
	"see file":     models.ActionReadFile,
	"display file": models.ActionReadFile,
	"open file":    models.ActionReadFile,
	"get file":     models.ActionReadFile,
	"cat file":     models.ActionReadFile,
	"view file":    models.ActionReadFile,

	"create file": models.ActionCreateFile,
	"write file":  models.ActionCreateFile,
	"new file":    models.ActionCreateFile,
	"add file":    models.ActionCreateFile,

	"update file": models.ActionUpdateFile,
	"edit file":   models.ActionUpdateFile,
	"change file": models.ActionUpdateFile,
	"modify file": models.ActionUpdateFile,

	"delete file": models.ActionDeleteFile,
	"remove file": models.ActionDeleteFile,
	"del file":    models.ActionDeleteFile,
	"rm file":     models.ActionDeleteFile,

	"create issue": models.ActionCreateIssue,
	"make issue":   models.ActionCreateIssue,
	"open issue":   models.ActionCreateIssue,
	"new issue":    models.ActionCreateIssue,
	"open bug":     models.ActionCreateIssue,
	"bug report":   models.ActionCreateIssue,
	"report bug":   models.ActionCreateIssue,

	"get issue":  models.ActionGetIssue,
	"show issue": models.ActionGetIssue,
	"view issue": models.ActionGetIssue,
	"read issue": models.ActionGetIssue,

	"get issues":  models.ActionGetIssues,
	"list issues": models.ActionGetIssues,
	"show issues": models.ActionGetIssues,

	"comment on issue": models.ActionCommentOnIssue,
	"comment":          models.ActionCommentOnIssue,
	"add comment":      models.ActionCommentOnIssue,
	"reply issue":      models.ActionCommentOnIssue,
	"issue comment":    models.ActionCommentOnIssue,
	"comment issue":    models.ActionCommentOnIssue,

	"create merge request": models.ActionCreateMergeRequest,
	"merge request":        models.ActionCreateMergeRequest,
	"create pull request":  models.ActionCreateMergeRequest,
	"pull request":         models.ActionCreateMergeRequest,
	"open merge request":   models.ActionCreateMergeRequest,
	"open pull request":    models.ActionCreateMergeRequest,
	"create mr":            models.ActionCreateMergeRequest,
	"create pr":            models.ActionCreateMergeRequest,

	"list branches": models.ActionListBranches,
	"show branches": models.ActionListBranches,
	"get branches":  models.ActionListBranches,

	"create branch": models.ActionCreateBranch,
	"new branch":    models.ActionCreateBranch,
	"make branch":   models.ActionCreateBranch,
	"add branch":    models.ActionCreateBranch,

	"delete branch": models.ActionDeleteBranch,
	"remove branch": models.ActionDeleteBranch,
	"del branch":    models.ActionDeleteBranch,

	"list files":     models.ActionListFiles,
	"show files":     models.ActionListFiles,
	"show directory": models.ActionListFiles,
	"list directory": models.ActionListFiles,
	"ls":             models.ActionListFiles,
	"get files":      models.ActionListFiles,
}

// NormalizeAction maps a raw action string onto the vocabulary. Matching is
// case-insensitive and treats underscores, hyphens and spaces alike. When no
// exact synonym exists, a single closest synonym within maxTypoDistance edits
// is accepted; ties between different actions are reported as no match.
func NormalizeAction(raw string) (models.ActionName, bool) {
	action, _ := matchAction(raw)
	return action, action != ""
}

// matchAction returns the matched action, or the tied candidates when the
// closest fuzzy matches disagree.
func matchAction(raw string) (models.ActionName, []models.ActionName) {
	key := normalizeKey(raw)
	if key == "" {
		return "", nil
	}
	if action, ok := actionSynonyms[key]; ok {
		return action, nil
	}

	best := maxTypoDistance + 1
	found := map[models.ActionName]bool{}
	for synonym, action := range actionSynonyms {
		limit := maxTypoDistance
		if len(synonym) <= 4 {
			// "ls" is one edit away from far too much.
			limit = 0
		}
		d := levenshtein(key, synonym)
		if d > limit || d > best {
			continue
		}
		if d < best {
			best = d
			found = map[models.ActionName]bool{}
		}
		found[action] = true
	}

	switch len(found) {
	case 0:
		return "", nil
	case 1:
		for action := range found {
			return action, nil
		}
	}
	candidates := make([]models.ActionName, 0, len(found))
	for action := range found {
		candidates = append(candidates, action)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	return "", candidates
}

func normalizeKey(raw string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', '/':
			return ' '
		}
		return r
	}, strings.ToLower(raw))
	return strings.Join(strings.Fields(replaced), " ")
}

// levenshtein is the classic two-row edit distance over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
