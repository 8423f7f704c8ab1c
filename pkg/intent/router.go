package intent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/crxforge/crxforge/pkg/llm"
	"github.com/crxforge/crxforge/pkg/logging"
	"github.com/crxforge/crxforge/pkg/types"
)

// Keyword groups for the rules pass. Fix is checked before improve and
// build so "fix the broken button" never reads as a build request.
var (
	fixKeywords = []string{
		"fix", "broken", "doesn't work", "does not work", "not working",
		"stopped working",
	}
	// problemNouns read as fix only when no build keyword claims the
	// message, so "build an extension that logs errors" stays a build.
	problemNouns = []string{
		"error", "bug", "crash", "throws",
	}
	improveKeywords = []string{
		"improve", "enhance", "add ", "also ", "change the", "update the",
		"make it ", "instead",
	}
	buildKeywords = []string{
		"create", "build", "make", "generate", "develop", "i want an extension",
		"i need an extension", "write an extension",
	}
	questionPrefixes = []string{
		"how ", "what ", "why ", "when ", "where ", "which ", "can i",
		"could i", "is it possible", "do i need", "explain",
	}
)

var (
	quotedRe  = regexp.MustCompile("`([^`]+)`|\"([^\"]+)\"|'([^']+)'")
	websiteRe = regexp.MustCompile(`\b(?:[a-z0-9-]+\.)+(?:com|org|net|io|dev|app|co|edu|gov)\b`)
)

// Router classifies inbound messages. A nil provider disables the model
// fallback, leaving the rules pass only.
type Router struct {
	provider llm.Provider
	logger   *logging.Logger
}

// NewRouter creates a router with the given fallback provider.
func NewRouter(provider llm.Provider) *Router {
	return &Router{
		provider: provider,
		logger:   logging.ForComponent("intent"),
	}
}

// Classify maps the new message to an Intent using the transcript tail for
// context. hasExtension reports whether the session's extension file mapping
// is non-empty; fix and improve against an empty extension are redirected to
// build, since there is nothing to modify yet.
//
// Classification never fails: when neither the rules pass nor the model
// fallback produces a confident kind, the result is None and the
// conversation continues.
func (r *Router) Classify(ctx context.Context, transcript []*types.Message, message string, hasExtension bool) Intent {
	kind, ok := classifyByRules(message)
	if !ok && r.provider != nil {
		kind = r.classifyByModel(ctx, transcript, message)
	}

	if !hasExtension && (kind == KindFix || kind == KindImprove) {
		r.logger.Infof("redirecting %s to build: no extension exists yet", kind)
		kind = KindBuild
	}

	switch kind {
	case KindBuild:
		return Build{
			Requirements:   message,
			Features:       extractFeatures(message),
			TargetWebsites: websiteRe.FindAllString(strings.ToLower(message), -1),
		}
	case KindFix:
		return Fix{
			Symptom:   message,
			ErrorText: extractQuoted(message),
		}
	case KindImprove:
		return Improve{Enhancement: message}
	case KindAnswer:
		return Answer{Question: message}
	default:
		return None{}
	}
}

// classifyByRules runs the keyword pass. The boolean is false when no rule
// fired and the model fallback should decide.
func classifyByRules(message string) (Kind, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return KindNone, true
	}

	for _, kw := range fixKeywords {
		if strings.Contains(lower, kw) {
			return KindFix, true
		}
	}
	if containsAny(lower, problemNouns) && !containsAny(lower, buildKeywords) {
		return KindFix, true
	}
	for _, kw := range improveKeywords {
		if strings.Contains(lower, kw) {
			return KindImprove, true
		}
	}
	for _, kw := range buildKeywords {
		if strings.Contains(lower, kw) {
			return KindBuild, true
		}
	}
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix) || strings.HasSuffix(lower, "?") {
			return KindAnswer, true
		}
	}
	return KindNone, false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

const classifierSystemPrompt = `You are an intent classifier for a Chrome extension building assistant.
Classify the user's latest message into exactly one of:
BUILD - the user wants a new extension created from scratch
FIX - the user reports a problem with the current extension
IMPROVE - the user wants a change or addition to the current extension
ANSWER - the user asks a question to be answered in text
NONE - greeting, small talk, or anything else
Respond with only the single label, nothing else.`

// classifyByModel asks the provider for a single-label decision. Any
// provider error degrades to None.
func (r *Router) classifyByModel(ctx context.Context, transcript []*types.Message, message string) Kind {
	tail := TranscriptTail(transcript, 0)

	messages := make([]*types.Message, 0, len(tail)+2)
	messages = append(messages, &types.Message{Role: types.RoleSystem, Content: classifierSystemPrompt})
	messages = append(messages, tail...)
	messages = append(messages, &types.Message{
		Role:    types.RoleUser,
		Content: fmt.Sprintf("Latest message: %s", message),
	})

	reply, err := r.provider.Complete(ctx, messages)
	if err != nil {
		r.logger.Warnf("fallback classification failed, defaulting to none: %v", err)
		return KindNone
	}

	label := strings.ToUpper(strings.TrimSpace(reply.Content))
	switch {
	case strings.Contains(label, "BUILD"):
		return KindBuild
	case strings.Contains(label, "IMPROVE"):
		return KindImprove
	case strings.Contains(label, "FIX"):
		return KindFix
	case strings.Contains(label, "ANSWER"):
		return KindAnswer
	default:
		return KindNone
	}
}

// extractQuoted pulls the first quoted or backticked fragment out of a
// message, which users commonly use for pasted error text.
func extractQuoted(message string) string {
	m := quotedRe.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	for _, group := range m[1:] {
		if group != "" {
			return group
		}
	}
	return ""
}

// extractFeatures splits a "with X and Y" clause into discrete features.
// Absent that clause the feature list stays empty and the requirements text
// carries everything.
func extractFeatures(message string) []string {
	lower := strings.ToLower(message)
	idx := strings.Index(lower, " with ")
	if idx < 0 {
		return nil
	}
	clause := message[idx+len(" with "):]
	if end := strings.IndexAny(clause, ".!?"); end >= 0 {
		clause = clause[:end]
	}

	parts := regexp.MustCompile(`,| and `).Split(clause, -1)
	var features []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			features = append(features, p)
		}
	}
	return features
}
