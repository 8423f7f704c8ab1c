// Package orchestrator is the top-level per-session state machine. Each
// inbound chat message is classified, then either answered directly, routed
// through a generation turn, or turned into a debug summary of the active
// browser verification session. All user-visible output leaves as ordered
// events on the session's live channel.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/crxforge/crxforge/pkg/browser"
	"github.com/crxforge/crxforge/pkg/engine"
	"github.com/crxforge/crxforge/pkg/intent"
	"github.com/crxforge/crxforge/pkg/llm"
	"github.com/crxforge/crxforge/pkg/logging"
	"github.com/crxforge/crxforge/pkg/session"
	"github.com/crxforge/crxforge/pkg/types"
	"github.com/crxforge/crxforge/pkg/workspace"
)

// generator runs one generation turn against a workspace.
type generator interface {
	Generate(ctx context.Context, ws *workspace.Handle, prompt string, emit engine.EmitFunc) (*engine.Result, error)
}

// classifier maps a message to an intent.
type classifier interface {
	Classify(ctx context.Context, transcript []*types.Message, message string, hasExtension bool) intent.Intent
}

// browserSessions exposes the per-session verification sessions.
type browserSessions interface {
	Get(sessionID string) (*browser.VerificationSession, bool)
}

// Orchestrator wires the session registry, workspace store, generation
// engine, intent router, browser manager, and event hub together.
type Orchestrator struct {
	registry   *session.Registry
	hub        *session.Hub
	workspaces *workspace.Store
	engine     generator
	router     classifier
	browsers   browserSessions
	provider   llm.Provider
	logger     *logging.Logger
}

// New creates an orchestrator. provider may be nil; conversational replies
// then fall back to fixed text.
func New(
	registry *session.Registry,
	hub *session.Hub,
	workspaces *workspace.Store,
	eng generator,
	router classifier,
	browsers browserSessions,
	provider llm.Provider,
) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		hub:        hub,
		workspaces: workspaces,
		engine:     eng,
		router:     router,
		browsers:   browsers,
		provider:   provider,
		logger:     logging.ForComponent("orchestrator"),
	}
}

// HandleMessage processes one inbound user message end to end. Events for
// the turn are published in the exact order produced, with the terminal
// result event last. Generation turns queue behind any turn already in
// flight for the same session.
func (o *Orchestrator) HandleMessage(ctx context.Context, sess *session.Session, text string) error {
	sess.Append(types.NewMessage(types.RoleUser, text))
	if err := o.registry.Save(sess); err != nil {
		o.logger.Warnf("persisting session %s: %v", sess.ID(), err)
	}
	o.hub.Publish(sess.ID(), types.NewMessageEvent(types.RoleUser, text))

	if intent.DetectDebugRequest(text) {
		if vs, ok := o.browsers.Get(sess.ID()); ok && vs.Status() == browser.StatusReady {
			return o.handleDebug(ctx, sess, vs)
		}
	}

	switch v := o.router.Classify(ctx, sess.Transcript(), text, sess.HasExtension()).(type) {
	case intent.Build:
		return o.handleGeneration(ctx, sess, workspace.ModeReplace, engine.PromptParams{
			Requirements:   v.Requirements,
			Features:       v.Features,
			TargetWebsites: v.TargetWebsites,
		})
	case intent.Fix:
		instruction := v.Symptom
		if v.ErrorText != "" {
			instruction = fmt.Sprintf("%s\nObserved error: %s", v.Symptom, v.ErrorText)
		}
		return o.handleGeneration(ctx, sess, workspace.ModeMerge, engine.PromptParams{
			Requirements: fmt.Sprintf("Fix this problem with the extension: %s", instruction),
		})
	case intent.Improve:
		return o.handleGeneration(ctx, sess, workspace.ModeMerge, engine.PromptParams{
			Requirements: fmt.Sprintf("Improve the extension: %s", v.Enhancement),
		})
	case intent.Answer:
		return o.handleAnswer(ctx, sess, v.Question)
	default:
		return o.replyDirect(sess,
			"I can help you build a Chrome extension. Describe what you would like it to do, for example: \"build an extension that counts my open tabs\".")
	}
}

// replyDirect appends an assistant message and publishes it as the turn's
// only event.
func (o *Orchestrator) replyDirect(sess *session.Session, content string) error {
	sess.Append(types.NewMessage(types.RoleAssistant, content))
	if err := o.registry.Save(sess); err != nil {
		o.logger.Warnf("persisting session %s: %v", sess.ID(), err)
	}
	o.hub.Publish(sess.ID(), types.NewMessageEvent(types.RoleAssistant, content))
	return nil
}

const answerSystemPrompt = "You are a Chrome extension development assistant. " +
	"Answer the user's question about their extension or extension development " +
	"concisely and concretely. Do not generate code files."

// handleAnswer produces an informational reply, via the provider when one is
// configured.
func (o *Orchestrator) handleAnswer(ctx context.Context, sess *session.Session, question string) error {
	if o.provider == nil {
		return o.replyDirect(sess,
			"I can't answer questions right now because no language model is configured, but I can still build, fix, and improve extensions.")
	}

	messages := []*types.Message{types.NewMessage(types.RoleSystem, answerSystemPrompt)}
	messages = append(messages, intent.TranscriptTail(sess.Transcript(), 0)...)
	messages = append(messages, types.NewMessage(types.RoleUser, question))

	reply, err := o.provider.Complete(ctx, messages)
	if err != nil {
		o.logger.Warnf("answer completion failed for session %s: %v", sess.ID(), err)
		return o.replyDirect(sess,
			"I couldn't reach the language model to answer that. Please try again.")
	}
	return o.replyDirect(sess, reply.Content)
}

// handleGeneration runs one generation turn under the session's generation
// lock: compose the prompt, stream CLI output, apply the resulting file set,
// and finish with the terminal extension_updated or error event.
func (o *Orchestrator) handleGeneration(ctx context.Context, sess *session.Session, mode workspace.WriteMode, params engine.PromptParams) error {
	sess.LockGeneration()
	defer sess.UnlockGeneration()

	ws, err := o.workspaces.Initialize(sess.ID())
	if err != nil {
		return o.failTurn(sess, fmt.Sprintf("Could not prepare the extension workspace: %v", err))
	}

	// A replace turn starts from an emptied workspace so files from a prior
	// build never leak into the new snapshot. The cleared files come back if
	// the run fails.
	var priorSnapshot types.FileMap
	if mode == workspace.ModeReplace {
		priorSnapshot, err = ws.Read()
		if err != nil {
			return o.failTurn(sess, fmt.Sprintf("Could not prepare the extension workspace: %v", err))
		}
		if err := ws.Write(nil, workspace.ModeReplace); err != nil {
			return o.failTurn(sess, fmt.Sprintf("Could not prepare the extension workspace: %v", err))
		}
	}
	restore := func() {
		if mode != workspace.ModeReplace {
			return
		}
		if err := ws.Write(priorSnapshot, workspace.ModeMerge); err != nil {
			o.logger.Warnf("restoring workspace for session %s: %v", sess.ID(), err)
		}
	}

	if mode == workspace.ModeMerge {
		params.PriorFiles = priorFileList(sess)
	}
	prompt := engine.ComposePrompt(params)

	emit := func(ev engine.OutputEvent) {
		o.hub.Publish(sess.ID(), types.NewCLIOutputEvent(string(ev.Stream), ev.Line))
	}
	result, err := o.engine.Generate(ctx, ws, prompt, emit)
	if err != nil {
		restore()
		return o.failTurn(sess, fmt.Sprintf("The generation process could not run: %v", err))
	}

	switch result.Status {
	case engine.StatusFailed:
		restore()
		return o.failTurn(sess, fmt.Sprintf("Generation failed: %s", result.Diagnostic))
	case engine.StatusSucceededNoFiles:
		restore()
		return o.failTurn(sess,
			"The generation process finished but produced no extension files. Your previous files are untouched; please rephrase the request and try again.")
	}

	if err := ws.Write(result.Files, mode); err != nil {
		return o.failTurn(sess, fmt.Sprintf("Could not store the generated files: %v", err))
	}
	snapshot, err := ws.Read()
	if err != nil {
		return o.failTurn(sess, fmt.Sprintf("Could not read back the generated files: %v", err))
	}
	// The seeded icons are binary and live only on disk; the extension
	// mapping carries text files.
	files := make(types.FileMap, len(snapshot))
	for p, c := range snapshot {
		if workspace.IsTemplateIcon(p) || !utf8.ValidString(c) {
			continue
		}
		files[p] = c
	}

	// A fresh value replaces the session's extension; the previous one may
	// still be read concurrently by API handlers and is never mutated.
	name, description := types.DescribeFiles(files)
	ext := &types.Extension{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Files:       files,
		UpdatedAt:   time.Now(),
	}
	updated := false
	if cur := sess.Extension(); cur != nil {
		ext.ID = cur.ID
		updated = len(cur.Files) > 0
	}
	sess.SetExtension(ext)

	verb := "Created"
	if updated {
		verb = "Updated"
	}
	paths := files.Paths()
	summary := fmt.Sprintf("%s %q (%d files: %s). Load it via chrome://extensions in developer mode, or start a browser verification session to try it out.",
		verb, name, len(paths), strings.Join(paths, ", "))
	sess.Append(types.NewMessage(types.RoleAssistant, summary))
	if err := o.registry.Save(sess); err != nil {
		o.logger.Warnf("persisting session %s: %v", sess.ID(), err)
	}

	o.hub.Publish(sess.ID(), types.NewMessageEvent(types.RoleAssistant, summary))
	o.hub.Publish(sess.ID(), types.NewExtensionUpdatedEvent(ext))
	return nil
}

// failTurn surfaces a generation failure as an assistant message followed by
// the terminal error event. Prior extension state is left as it was.
func (o *Orchestrator) failTurn(sess *session.Session, diagnostic string) error {
	sess.Append(types.NewMessage(types.RoleAssistant, diagnostic))
	if err := o.registry.Save(sess); err != nil {
		o.logger.Warnf("persisting session %s: %v", sess.ID(), err)
	}
	o.hub.Publish(sess.ID(), types.NewMessageEvent(types.RoleAssistant, diagnostic))
	o.hub.Publish(sess.ID(), types.NewErrorEvent(diagnostic))
	return nil
}

// priorFileList enumerates the session's current extension files, excluding
// the seeded template icons, for modification prompts.
func priorFileList(sess *session.Session) []string {
	ext := sess.Extension()
	if ext == nil {
		return nil
	}
	var out []string
	for _, p := range ext.Files.Paths() {
		if workspace.IsTemplateIcon(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
