package openai

import (
	"context"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/daohoangson/bubby/assistant"
	"github.com/daohoangson/bubby/tools"
)

func (c *Client) CreateThread(ctx context.Context, seed []assistant.SeedMessage) (string, error) {
	req := goopenai.ThreadRequest{}
	for _, msg := range seed {
		req.Messages = append(req.Messages, goopenai.ThreadMessage{
			Role:    goopenai.ThreadMessageRole(msg.Role),
			Content: msg.Text,
		})
	}
	thread, err := c.api.CreateThread(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

func (c *Client) CreateMessage(ctx context.Context, threadID string, msg assistant.UserMessage) error {
	content := msg.Text
	if msg.ImageURL != "" {
		// The assistants thread API takes text content only; the image is
		// referenced by URL so the assistant can pass it to analyze_image.
		if content == "" {
			content = msg.ImageURL
		} else {
			content = content + "\n\n" + msg.ImageURL
		}
	}
	_, err := c.api.CreateMessage(ctx, threadID, goopenai.MessageRequest{
		Role:    string(goopenai.ThreadMessageRoleUser),
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (c *Client) CreateRun(ctx context.Context, threadID string, specs []tools.Spec) (assistant.Run, error) {
	req := goopenai.RunRequest{
		AssistantID:  c.cfg.AssistantID,
		Model:        c.cfg.Model,
		Instructions: c.cfg.Instructions,
	}
	for _, spec := range specs {
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	run, err := c.api.CreateRun(ctx, threadID, req)
	if err != nil {
		return assistant.Run{}, fmt.Errorf("create run: %w", err)
	}
	return mapRun(run), nil
}

func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (assistant.Run, error) {
	run, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return assistant.Run{}, fmt.Errorf("retrieve run: %w", err)
	}
	return mapRun(run), nil
}

func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []tools.Output) error {
	req := goopenai.SubmitToolOutputsRequest{}
	for _, out := range outputs {
		req.ToolOutputs = append(req.ToolOutputs, goopenai.ToolOutput{
			ToolCallID: out.CallID,
			Output:     out.Output,
		})
	}
	if _, err := c.api.SubmitToolOutputs(ctx, threadID, runID, req); err != nil {
		return fmt.Errorf("submit tool outputs: %w", err)
	}
	return nil
}

func (c *Client) ListRunMessages(ctx context.Context, threadID, runID string) ([]assistant.Message, error) {
	order := "asc"
	list, err := c.api.ListMessage(ctx, threadID, nil, &order, nil, nil, &runID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages := make([]assistant.Message, 0, len(list.Messages))
	for _, msg := range list.Messages {
		m := assistant.Message{ID: msg.ID, Role: msg.Role}
		for _, part := range msg.Content {
			if part.Text != nil && part.Text.Value != "" {
				m.Texts = append(m.Texts, part.Text.Value)
			}
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func mapRun(run goopenai.Run) assistant.Run {
	mapped := assistant.Run{
		ThreadID: run.ThreadID,
		ID:       run.ID,
		Status:   assistant.RunStatus(run.Status),
	}
	if run.Status == goopenai.RunStatusRequiresAction &&
		run.RequiredAction != nil &&
		run.RequiredAction.SubmitToolOutputs != nil {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			mapped.RequiredAction = append(mapped.RequiredAction, tools.Call{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: strings.TrimSpace(call.Function.Arguments),
			})
		}
	}
	return mapped
}
