// Package intent classifies chat messages into the fixed set of actions the
// orchestrator can take. Classification is rules-first with a low-temperature
// model fallback, so the same message maps to the same action run to run.
package intent

// Kind is the classified action a chat message requests.
type Kind string

const (
	KindBuild   Kind = "build"
	KindFix     Kind = "fix"
	KindImprove Kind = "improve"
	KindAnswer  Kind = "answer"
	KindNone    Kind = "none"
)

// Intent is the tagged result of classification. Exactly one variant
// implements it per kind, each with its own fixed parameter set.
type Intent interface {
	Kind() Kind
}

// Build requests a from-scratch extension generation.
type Build struct {
	// Requirements is the user's description of what to build.
	Requirements string

	// Features are discrete capabilities mentioned in the request.
	Features []string

	// TargetWebsites are site patterns the extension should act on.
	TargetWebsites []string
}

func (Build) Kind() Kind { return KindBuild }

// Fix requests a repair of the existing extension.
type Fix struct {
	// Symptom is the user's description of the problem.
	Symptom string

	// ErrorText is verbatim error output quoted in the message, if any.
	ErrorText string
}

func (Fix) Kind() Kind { return KindFix }

// Improve requests an enhancement to the existing extension.
type Improve struct {
	// Enhancement is the requested change.
	Enhancement string
}

func (Improve) Kind() Kind { return KindImprove }

// Answer requests an informational reply with no generation.
type Answer struct {
	Question string
}

func (Answer) Kind() Kind { return KindAnswer }

// None means the message needs no action beyond a conversational reply.
type None struct{}

func (None) Kind() Kind { return KindNone }
