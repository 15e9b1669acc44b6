// Package chat defines the conversation-channel capability the assistant core
// talks to, plus the relay that orders outbound replies and guarantees the
// user is never left with silence after a failed turn.
package chat

import "context"

// Reply is the outbound message variant set. It is sealed so every dispatch
// site can switch exhaustively.
type Reply interface{ isReply() }

// Markdown is a regular assistant reply rendered with formatting.
type Markdown struct {
	Text string
}

// Photo delivers an image by URL with an optional caption.
type Photo struct {
	URL     string
	Caption string
}

// System is an ephemeral progress notice ("🚨 Generating...") that may be
// edited in place and cleaned up once real content arrives.
type System struct {
	Text string
}

func (Markdown) isReply() {}
func (Photo) isReply()    {}
func (System) isReply()   {}

// Handle points at a sent message that can still be mutated.
type Handle interface {
	Edit(ctx context.Context, text string) error
	Delete(ctx context.Context) error
}

// Transport is one conversation channel. Implementations live at the edge
// (Telegram adapter, fakes in tests); the core only sends through it.
type Transport interface {
	ChannelID() string
	// Send delivers a reply. The returned handle is nil for replies the
	// transport cannot edit afterwards.
	Send(ctx context.Context, reply Reply) (Handle, error)
	Typing(ctx context.Context) error
	// ResolveFileURL turns a masked file URL issued by this transport back
	// into a fetchable one. Returns ok=false for URLs it did not issue.
	ResolveFileURL(ctx context.Context, maskedURL string) (string, bool, error)
}

// ErrorReporter is an optional Transport capability used to hand a
// diagnostic dump to admin users when a whole turn failed.
type ErrorReporter interface {
	SendErrorReport(ctx context.Context, caption string, payload []byte) error
}

// Replier is the narrow sending surface handed to the orchestrator and to
// tool handlers.
type Replier interface {
	Reply(ctx context.Context, reply Reply)
}

// User identifies the sender of the inbound message being processed.
type User struct {
	ID    string
	Name  string
	Admin bool
}
