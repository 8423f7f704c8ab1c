package types

import "time"

// ChannelEventType defines the type of event emitted on a session's live channel.
type ChannelEventType string

const (
	EventTypeMessage          ChannelEventType = "message"           // EventTypeMessage carries a conversational message (user or assistant).
	EventTypeCLIOutput        ChannelEventType = "cli_output"        // EventTypeCLIOutput carries one incremental chunk of generation-process output.
	EventTypeExtensionUpdated ChannelEventType = "extension_updated" // EventTypeExtensionUpdated signals that the session's extension file set changed.
	EventTypeDebugSummary     ChannelEventType = "debug_summary"     // EventTypeDebugSummary carries per-category counts from a browser verification log.
	EventTypeError            ChannelEventType = "error"             // EventTypeError carries a user-visible failure diagnostic.
)

// ChannelEvent is one entry in the ordered stream of typed events delivered
// over a session's live channel. Events for a single turn are delivered in
// the exact order produced; the terminal event of a generation turn is
// always the extension_updated (or error) event.
type ChannelEvent struct {
	// Type indicates the kind of event.
	Type ChannelEventType `json:"type"`

	// Role is the message author for message events.
	Role MessageRole `json:"role,omitempty"`

	// Content holds text for message, cli_output, and error events.
	Content string `json:"content,omitempty"`

	// Stream is "stdout" or "stderr" for cli_output events.
	Stream string `json:"stream,omitempty"`

	// ExtensionID, Name, Description and FileList describe the extension
	// for extension_updated events.
	ExtensionID string   `json:"extension_id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	FileList    []string `json:"file_list,omitempty"`

	// SessionID and Counts are set for debug_summary events.
	SessionID string         `json:"session_id,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`

	// Timestamp is when the event was produced.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessageEvent creates a conversational message event.
func NewMessageEvent(role MessageRole, content string) *ChannelEvent {
	return &ChannelEvent{
		Type:      EventTypeMessage,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewCLIOutputEvent creates an incremental generation-output event.
// stream must be "stdout" or "stderr".
func NewCLIOutputEvent(stream, content string) *ChannelEvent {
	return &ChannelEvent{
		Type:      EventTypeCLIOutput,
		Stream:    stream,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewExtensionUpdatedEvent creates the terminal event of a successful
// generation turn, carrying the current file list.
func NewExtensionUpdatedEvent(ext *Extension) *ChannelEvent {
	return &ChannelEvent{
		Type:        EventTypeExtensionUpdated,
		ExtensionID: ext.ID,
		Name:        ext.Name,
		Description: ext.Description,
		FileList:    ext.Files.Paths(),
		Timestamp:   time.Now(),
	}
}

// NewDebugSummaryEvent creates a summary event for a browser verification log.
func NewDebugSummaryEvent(sessionID string, counts map[string]int) *ChannelEvent {
	return &ChannelEvent{
		Type:      EventTypeDebugSummary,
		SessionID: sessionID,
		Counts:    counts,
		Timestamp: time.Now(),
	}
}

// NewErrorEvent creates a user-visible failure event.
func NewErrorEvent(content string) *ChannelEvent {
	return &ChannelEvent{
		Type:      EventTypeError,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// IsTerminal reports whether this event ends a generation turn.
func (e *ChannelEvent) IsTerminal() bool {
	return e.Type == EventTypeExtensionUpdated || e.Type == EventTypeError
}
