package builtin

import (
	"context"

	"github.com/daohoangson/bubby/assistant"
	"github.com/daohoangson/bubby/tools"
)

func overwriteMemory(threads *assistant.ThreadManager) tools.Tool {
	return tools.Tool{
		Name:        "overwrite_memory",
		Description: "Overwrite memory.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"memory": map[string]any{
					"type":        "string",
					"description": "New memory to overwrite the existing one.",
				},
			},
			"required": []any{"memory"},
		},
		Handler: func(ctx context.Context, inv *tools.Invocation, params map[string]any) (any, error) {
			memory, _ := params["memory"].(string)
			if err := threads.OverwriteMemory(ctx, inv.ChannelID, memory); err != nil {
				return nil, err
			}
			return true, nil
		},
	}
}
