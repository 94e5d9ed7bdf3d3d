package intent

import (
	"fmt"
	"strings"

	"github.com/gitlabassist/pkg/models"
)

// TranslatorRole is the opening line of the system instruction.
const TranslatorRole = "You are an assistant that converts user instructions about GitLab operations into a single JSON object."

// Output rules and worked examples
const (
	OutputRules = `Only return one valid JSON object. Do not add explanations, extra text or markdown.
The object MUST have an "action" key whose value is one of the supported actions below.`

	ContextRules = `CONTEXT:
- Pay attention to previous turns in the conversation.
- If the user says "it", "that" or "the file", take the file, issue or branch from the chat history.
- Never invent values for required fields. If a required value is unknown, omit the key.`

	BranchRules = `BRANCHES:
- If the user names a branch for a file operation or a listing, put it in a "branch" key.
- Do NOT produce a "Checkout Branch" action.`

	FilePathRules = `FILE PATHS:
- Be precise with file paths and always include the extension.
- A request for the "readme" means "README.md".`

	CommentRules = `COMMENTS:
When the user asks to comment on an issue, return exactly the keys "action", "issue_iid" (an integer) and "body" (a string).`

	FewShotExamples = `EXAMPLES:
User: "list all branches"
{"action": "List Branches"}

User: "create a new branch called feature-1 from main"
{"action": "Create Branch", "new_branch": "feature-1", "source_branch": "main"}

User: "delete the branch feature-1"
{"action": "Delete Branch", "branch_name": "feature-1"}

User: "list the files"
{"action": "List Files", "path": "."}

User: "list files in the main2 branch"
{"action": "List Files", "path": ".", "branch": "main2"}

User: "show me the readme"
{"action": "Read File", "file_path": "README.md"}

User: "On issue #15, add the comment 'This is fixed.'"
{"action": "Comment on Issue", "issue_iid": 15, "body": "This is fixed."}

User: "open an issue: Login fails with 403 when using correct credentials"
{"action": "Create Issue", "title": "Bug: Login fails", "description": "Login fails with error code 403 when using correct credentials."}

User: "in app.py replace 'debug = True' with 'debug = False' on branch dev"
{"action": "Update File", "file_path": "app.py", "old_content": "debug = True", "new_content": "debug = False", "commit_message": "Disable debug", "branch": "dev"}

User: "open a merge request from feature-1 into main titled Add login"
{"action": "Create Merge Request", "source_branch": "feature-1", "target_branch": "main", "title": "Add login"}`
)

// BuildSystemPrompt assembles the fixed instruction sent with every
// translation request.
func BuildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(TranslatorRole)
	b.WriteString("\n\n")
	b.WriteString(OutputRules)
	b.WriteString("\n\nSUPPORTED ACTIONS (required fields, then optional fields):\n")
	for _, action := range models.Actions {
		spec := actionSpecs[action]
		fmt.Fprintf(&b, "- %q", action)
		if len(spec.required) > 0 {
			fmt.Fprintf(&b, " requires %s", strings.Join(spec.required, ", "))
		}
		if len(spec.optional) > 0 {
			fmt.Fprintf(&b, "; optional %s", strings.Join(spec.optional, ", "))
		}
		b.WriteString("\n")
	}
	for _, section := range []string{ContextRules, BranchRules, FilePathRules, CommentRules, FewShotExamples} {
		b.WriteString("\n")
		b.WriteString(section)
		b.WriteString("\n")
	}
	return b.String()
}
