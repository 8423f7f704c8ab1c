package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/crxforge/crxforge/pkg/browser"
	"github.com/crxforge/crxforge/pkg/session"
	"github.com/crxforge/crxforge/pkg/types"
)

// debugLogTail bounds how many captured events are handed to the model when
// producing recommendations.
const debugLogTail = 40

const debugSystemPrompt = "You are a Chrome extension debugging assistant. " +
	"Given captured browser events for a loaded extension, explain the most " +
	"likely problems and give a short, fix-ready instruction describing what " +
	"to change. Be specific; reference the events you were given."

// handleDebug summarizes the active verification session's log: per-category
// counts plus recommendations, published as an assistant message followed by
// the terminal debug_summary event. The generation engine is never invoked
// on this path; the recommendation text is written so it can be pasted back
// as a fix request.
func (o *Orchestrator) handleDebug(ctx context.Context, sess *session.Session, vs *browser.VerificationSession) error {
	logs := vs.CollectLogs()
	counts := vs.Counts()

	analysis := o.analyzeLogs(ctx, sess, logs, counts)
	sess.Append(types.NewMessage(types.RoleAssistant, analysis))
	if err := o.registry.Save(sess); err != nil {
		o.logger.Warnf("persisting session %s: %v", sess.ID(), err)
	}

	o.hub.Publish(sess.ID(), types.NewMessageEvent(types.RoleAssistant, analysis))
	o.hub.Publish(sess.ID(), types.NewDebugSummaryEvent(sess.ID(), countsByName(counts)))
	return nil
}

// analyzeLogs builds the recommendation text: a counts headline, rule-based
// recommendations, and, when a provider is configured, a model analysis of
// the log tail.
func (o *Orchestrator) analyzeLogs(ctx context.Context, sess *session.Session, logs []browser.Event, counts map[browser.Category]int) string {
	var b strings.Builder

	if len(logs) == 0 {
		b.WriteString("No runtime events captured yet. Run a probe or interact with the extension in the browser session, then ask again.")
		return b.String()
	}

	fmt.Fprintf(&b, "Captured %d events from the browser session:\n", len(logs))
	for _, c := range []browser.Category{
		browser.CategoryConsole, browser.CategoryError, browser.CategoryNetworkError,
		browser.CategoryClick, browser.CategoryKeyboard, browser.CategoryNavigation,
		browser.CategoryLifecycle,
	} {
		if counts[c] > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", c, counts[c])
		}
	}

	for _, rec := range recommendationsFor(counts) {
		fmt.Fprintf(&b, "\n%s", rec)
	}

	if o.provider != nil {
		if modelText := o.modelAnalysis(ctx, logs); modelText != "" {
			fmt.Fprintf(&b, "\n\n%s", modelText)
		}
	}
	return b.String()
}

// recommendationsFor derives fix-ready guidance from the category counts.
func recommendationsFor(counts map[browser.Category]int) []string {
	var recs []string
	if n := counts[browser.CategoryError]; n > 0 {
		recs = append(recs, fmt.Sprintf("There are %d page errors. Ask me to fix them, for example: \"fix the errors in the console\".", n))
	}
	if n := counts[browser.CategoryNetworkError]; n > 0 {
		recs = append(recs, fmt.Sprintf("%d network requests failed. Check host permissions in manifest.json and the request URLs.", n))
	}
	if counts[browser.CategoryError] == 0 && counts[browser.CategoryNetworkError] == 0 {
		recs = append(recs, "No errors captured. If something still looks wrong, describe the behavior and I can fix it.")
	}
	return recs
}

// modelAnalysis asks the provider for an analysis of the newest log entries.
// Failures degrade to the rule-based recommendations alone.
func (o *Orchestrator) modelAnalysis(ctx context.Context, logs []browser.Event) string {
	tail := logs
	if len(tail) > debugLogTail {
		tail = tail[len(tail)-debugLogTail:]
	}
	var lines []string
	for _, ev := range tail {
		lines = append(lines, fmt.Sprintf("[%s] %s", ev.Category, ev.Payload))
	}

	messages := []*types.Message{
		types.NewMessage(types.RoleSystem, debugSystemPrompt),
		types.NewMessage(types.RoleUser, strings.Join(lines, "\n")),
	}
	reply, err := o.provider.Complete(ctx, messages)
	if err != nil {
		o.logger.Warnf("debug analysis completion failed: %v", err)
		return ""
	}
	return reply.Content
}

// countsByName converts category counts to the wire shape of the
// debug_summary event.
func countsByName(counts map[browser.Category]int) map[string]int {
	out := make(map[string]int, len(counts))
	for c, n := range counts {
		out[string(c)] = n
	}
	return out
}
