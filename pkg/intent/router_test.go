package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crxforge/crxforge/pkg/llm"
	"github.com/crxforge/crxforge/pkg/types"
)

// fakeProvider returns a canned completion and records whether it was asked.
type fakeProvider struct {
	reply  string
	err    error
	called bool
}

func (f *fakeProvider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return &types.Message{Role: types.RoleAssistant, Content: f.reply}, nil
}

func (f *fakeProvider) StreamCompletion(ctx context.Context, messages []*types.Message) (<-chan *llm.StreamChunk, error) {
	ch := make(chan *llm.StreamChunk, 1)
	ch <- &llm.StreamChunk{Content: f.reply, Finished: true}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) GetModel() string { return "fake" }

func TestClassify_Rules(t *testing.T) {
	router := NewRouter(nil)

	tests := []struct {
		name         string
		message      string
		hasExtension bool
		wantKind     Kind
	}{
		{"build request", "build a tab counter extension", false, KindBuild},
		{"create request", "create an extension that blocks ads", false, KindBuild},
		{"fix request", "it throws an error when I click the button", true, KindFix},
		{"broken report", "the popup is broken", true, KindFix},
		{"improve request", "add a dark mode toggle", true, KindImprove},
		{"question", "how do chrome extensions request permissions?", false, KindAnswer},
		{"greeting", "hello there", false, KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := router.Classify(context.Background(), nil, tt.message, tt.hasExtension)
			assert.Equal(t, tt.wantKind, got.Kind())
		})
	}
}

func TestClassify_BuildMentioningErrorsStaysBuild(t *testing.T) {
	router := NewRouter(nil)

	// Problem nouns alone must not turn a build request into a fix, even
	// when an extension already exists.
	got := router.Classify(context.Background(), nil,
		"build a new extension that logs errors to a file", true)
	require.Equal(t, KindBuild, got.Kind())

	got = router.Classify(context.Background(), nil,
		"create an extension that reports javascript bugs", true)
	assert.Equal(t, KindBuild, got.Kind())
}

func TestClassify_FixWithoutExtensionRedirectsToBuild(t *testing.T) {
	router := NewRouter(nil)

	got := router.Classify(context.Background(), nil, "fix the button, it is broken", false)
	require.Equal(t, KindBuild, got.Kind())

	build, ok := got.(Build)
	require.True(t, ok)
	assert.Equal(t, "fix the button, it is broken", build.Requirements)
}

func TestClassify_ImproveWithoutExtensionRedirectsToBuild(t *testing.T) {
	router := NewRouter(nil)

	got := router.Classify(context.Background(), nil, "add a settings page", false)
	assert.Equal(t, KindBuild, got.Kind())
}

func TestClassify_FixCapturesQuotedErrorText(t *testing.T) {
	router := NewRouter(nil)

	got := router.Classify(context.Background(), nil,
		`the popup crashes with "Uncaught TypeError: x is undefined"`, true)
	require.Equal(t, KindFix, got.Kind())

	fix := got.(Fix)
	assert.Equal(t, "Uncaught TypeError: x is undefined", fix.ErrorText)
	assert.Contains(t, fix.Symptom, "popup crashes")
}

func TestClassify_BuildExtractsFeaturesAndWebsites(t *testing.T) {
	router := NewRouter(nil)

	got := router.Classify(context.Background(), nil,
		"build a price tracker for amazon.com with price alerts and a history chart", false)
	require.Equal(t, KindBuild, got.Kind())

	build := got.(Build)
	assert.Equal(t, []string{"price alerts", "a history chart"}, build.Features)
	assert.Equal(t, []string{"amazon.com"}, build.TargetWebsites)
}

func TestClassify_FallsBackToModelWhenRulesAreSilent(t *testing.T) {
	provider := &fakeProvider{reply: "BUILD"}
	router := NewRouter(provider)

	got := router.Classify(context.Background(), nil, "something for counting my open tabs", false)
	assert.True(t, provider.called)
	assert.Equal(t, KindBuild, got.Kind())
}

func TestClassify_ModelFailureDefaultsToNone(t *testing.T) {
	provider := &fakeProvider{err: assert.AnError}
	router := NewRouter(provider)

	got := router.Classify(context.Background(), nil, "something for counting my open tabs", false)
	assert.Equal(t, KindNone, got.Kind())
}

func TestClassify_RulesSkipModelFallback(t *testing.T) {
	provider := &fakeProvider{reply: "NONE"}
	router := NewRouter(provider)

	got := router.Classify(context.Background(), nil, "build a bookmark manager", false)
	assert.False(t, provider.called)
	assert.Equal(t, KindBuild, got.Kind())
}

func TestDetectDebugRequest(t *testing.T) {
	assert.True(t, DetectDebugRequest("can you debug what happened?"))
	assert.True(t, DetectDebugRequest("show me the logs"))
	assert.True(t, DetectDebugRequest("analyze the console output"))
	assert.False(t, DetectDebugRequest("build a tab counter"))
	assert.False(t, DetectDebugRequest("hello"))
}

func TestTranscriptTail_RespectsBudget(t *testing.T) {
	var transcript []*types.Message
	for i := 0; i < 10; i++ {
		transcript = append(transcript, &types.Message{
			Role:    types.RoleUser,
			Content: "a message with a handful of words in it",
		})
	}

	tail := TranscriptTail(transcript, 30)
	assert.NotEmpty(t, tail)
	assert.Less(t, len(tail), len(transcript))
	// Tail must be a suffix: its last element is the transcript's last.
	assert.Same(t, transcript[len(transcript)-1], tail[len(tail)-1])
}

func TestTranscriptTail_NeverEmptyForNonEmptyTranscript(t *testing.T) {
	transcript := []*types.Message{{Role: types.RoleUser, Content: "a message much longer than a one token budget allows"}}
	tail := TranscriptTail(transcript, 1)
	assert.Len(t, tail, 1)
}
