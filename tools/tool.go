// Package tools holds the pluggable tool registry and the dispatch protocol
// for servicing a run's required actions: parse arguments, invoke the
// handler, and always hand back exactly one output per tool call id.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/daohoangson/bubby/chat"
	"github.com/daohoangson/bubby/kv"
)

// Invocation carries the ambient capabilities handlers may use: the current
// conversation, persistence, and the requesting user.
type Invocation struct {
	Replier   chat.Replier
	Transport chat.Transport
	KV        kv.Store
	User      chat.User
	ChannelID string
}

// Handler executes a tool with validated parameters. A boolean result is
// wrapped as {"success": bool}; any other result is serialized as-is.
type Handler func(ctx context.Context, inv *Invocation, params map[string]any) (any, error)

// Tool describes one registered capability. Name must be unique within a
// registry; Parameters is a JSON-schema object advertised to the assistant.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

func (t Tool) validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tools: name is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("tools: description is required for %q", t.Name)
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: handler is required for %q", t.Name)
	}
	return nil
}

// Spec is the wire-facing subset of a Tool, passed to the assistant service
// when a run starts.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Call is one required action emitted by a run.
type Call struct {
	ID        string
	Name      string
	Arguments string
}

// Output is the result for one Call. Exactly one Output exists per Call in a
// batch before the batch may be submitted.
type Output struct {
	CallID string
	Output string
}
