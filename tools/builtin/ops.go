package builtin

import (
	"context"

	"github.com/daohoangson/bubby/assistant"
	"github.com/daohoangson/bubby/chat"
	"github.com/daohoangson/bubby/tools"
)

func newThread(threads *assistant.ThreadManager) tools.Tool {
	return tools.Tool{
		Name:        "new_thread",
		Description: "Discard the recent messages and start a new thread.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, inv *tools.Invocation, params map[string]any) (any, error) {
			inv.Replier.Reply(ctx, chat.System{Text: "🚨 New thread"})
			return threads.ForceNew(ctx, sessionFromInvocation(inv))
		},
	}
}
