// Package engine drives the external code-generation CLI. Each invocation
// runs the configured binary inside a session workspace, streams its stdout
// and stderr line by line, and reports the resulting file set once the
// process exits.
package engine

import (
	"fmt"
	"strings"
)

// PromptParams carries the pieces assembled into a single CLI prompt.
type PromptParams struct {
	// Requirements is the user's description of what to build or change.
	Requirements string

	// Features are discrete capabilities extracted from the request.
	Features []string

	// TargetWebsites are sites the extension should act on.
	TargetWebsites []string

	// PriorFiles lists the files already in the workspace. A non-empty list
	// switches the prompt to modification wording.
	PriorFiles []string
}

// ComposePrompt builds the generation prompt. Fresh builds ask for a complete
// extension skeleton; when prior files exist the prompt enumerates them and
// asks for targeted changes instead. Both variants forbid generating PNG
// files since the workspace is seeded with template icons.
func ComposePrompt(p PromptParams) string {
	var b strings.Builder

	var featuresText, websitesText string
	if len(p.Features) > 0 {
		featuresText = fmt.Sprintf("\nFeatures: %s", strings.Join(p.Features, ", "))
	}
	if len(p.TargetWebsites) > 0 {
		websitesText = fmt.Sprintf("\nTarget websites: %s", strings.Join(p.TargetWebsites, ", "))
	}

	if len(p.PriorFiles) > 0 {
		var fileList strings.Builder
		for _, f := range p.PriorFiles {
			fmt.Fprintf(&fileList, "- %s\n", f)
		}
		fmt.Fprintf(&b, `Modify the existing Chrome extension based on these requirements:

%s%s%s

The extension currently has these files:
%s
Please modify the existing files or add new files as needed to implement the requested changes.
Make sure the extension remains functional and follows Chrome extension best practices.

IMPORTANT: Do NOT generate any PNG image files. Use the existing icon files or create text-based placeholders.`,
			p.Requirements, featuresText, websitesText, fileList.String())
	} else {
		fmt.Fprintf(&b, `Create a complete Chrome extension based on these requirements:

%s%s%s

Generate all necessary files including:
- manifest.json
- popup.html, popup.css, popup.js (if needed)
- content.js (if needed)
- background.js (if needed)
- Any other required files

Make sure the extension is functional and follows Chrome extension best practices.

IMPORTANT: Do NOT generate any PNG image files. The icon files will be copied from the existing template.`,
			p.Requirements, featuresText, websitesText)
	}

	return b.String()
}

// FlattenPrompt collapses a multi-line prompt to one line for CLIs that take
// the prompt as a single argument.
func FlattenPrompt(prompt string) string {
	return strings.Join(strings.Fields(prompt), " ")
}
