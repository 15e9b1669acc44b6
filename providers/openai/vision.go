package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/daohoangson/bubby/tools/builtin"
)

func (c *Client) AnalyzeImage(ctx context.Context, imageURL, prompt string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.VisionModel,
		Temperature: temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{Type: goopenai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("analyze image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("analyze image: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) GenerateImage(ctx context.Context, prompt, size string) (builtin.GeneratedImage, error) {
	resp, err := c.api.CreateImage(ctx, goopenai.ImageRequest{
		Model:          c.cfg.ImageModel,
		Prompt:         prompt,
		Size:           size,
		N:              1,
		ResponseFormat: goopenai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return builtin.GeneratedImage{}, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		return builtin.GeneratedImage{}, nil
	}
	return builtin.GeneratedImage{
		URL:           resp.Data[0].URL,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
	}, nil
}
