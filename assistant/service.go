// Package assistant contains the core of the bot: thread continuity per
// conversation channel and the orchestration loop that drives a hosted
// assistant run from submission to completion, servicing required tool
// calls along the way.
package assistant

import (
	"context"

	"github.com/daohoangson/bubby/tools"
)

// RunStatus is the remote run's lifecycle state. The remote API owns the
// value set; unknown values are treated as terminal failures.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
)

// Run is one invocation of the assistant against a thread. It lives only for
// the duration of one orchestration loop and is never persisted.
type Run struct {
	ThreadID string
	ID       string
	Status   RunStatus
	// RequiredAction holds the pending tool calls when Status is
	// requires_action.
	RequiredAction []tools.Call
}

// Message is an assistant-authored thread message. Texts carries the text
// content parts in order; non-text parts are dropped by the adapter.
type Message struct {
	ID    string
	Role  string
	Texts []string
}

// SeedMessage pre-populates a freshly created thread.
type SeedMessage struct {
	Role string
	Text string
}

// UserMessage is the inbound content appended to a thread before a run.
type UserMessage struct {
	Text     string
	ImageURL string
}

// Service is the hosted assistant API boundary. Its concrete wire shape is
// an external protocol; adapters live under providers/.
type Service interface {
	CreateThread(ctx context.Context, seed []SeedMessage) (string, error)
	CreateMessage(ctx context.Context, threadID string, msg UserMessage) error
	CreateRun(ctx context.Context, threadID string, specs []tools.Spec) (Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (Run, error)
	// SubmitToolOutputs hands back one output per pending tool call in a
	// single all-or-nothing call.
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []tools.Output) error
	// ListRunMessages returns the run's assistant messages in generation
	// order (oldest first). Callers deduplicate by message id.
	ListRunMessages(ctx context.Context, threadID, runID string) ([]Message, error)
}
