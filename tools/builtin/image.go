package builtin

import (
	"context"
	"fmt"

	"github.com/daohoangson/bubby/chat"
	"github.com/daohoangson/bubby/tools"
)

func generateImage(vision Vision) tools.Tool {
	return tools.Tool{
		Name:        "generate_image",
		Description: "Generate an image.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "The prompt to ask the Vision AI model to generate.",
				},
				"size": map[string]any{
					"type":        "string",
					"enum":        []any{"1024x1024", "1792x1024", "1024x1792"},
					"description": "The size of the generated images.",
				},
			},
			"required": []any{"prompt", "size"},
		},
		Handler: func(ctx context.Context, inv *tools.Invocation, params map[string]any) (any, error) {
			prompt, _ := params["prompt"].(string)
			size, _ := params["size"].(string)

			inv.Replier.Reply(ctx, chat.System{Text: "🚨 Generating..."})
			image, err := vision.GenerateImage(ctx, prompt, size)
			if err != nil {
				return nil, err
			}
			if image.URL == "" {
				return false, nil
			}

			caption := image.RevisedPrompt
			if caption == "" {
				caption = prompt
			}
			inv.Replier.Reply(ctx, chat.System{Text: "🚨 Uploading..."})
			inv.Replier.Reply(ctx, chat.Photo{URL: image.URL, Caption: caption})

			description := "Image has been generated and sent to user successfully."
			if image.RevisedPrompt != "" {
				description = fmt.Sprintf(
					"Image has been generated with a revised prompt: %s\n\nThe image and revised prompt have been sent to user successfully.",
					image.RevisedPrompt,
				)
			}
			return map[string]any{"success": true, "description": description}, nil
		},
	}
}

func analyzeImage(vision Vision) tools.Tool {
	return tools.Tool{
		Name:        "analyze_image",
		Description: "Analyze an image.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"image_url": map[string]any{
					"type":        "string",
					"description": "The image URL.",
				},
				"prompt": map[string]any{
					"type":        "string",
					"description": "The prompt to ask the Vision AI model to analyze.",
				},
				"temperature": map[string]any{
					"type": "number",
					"description": "What sampling temperature to use, between 0 and 2. " +
						"Higher values like 0.8 will make the output more random, " +
						"while lower values like 0.2 will make it more focused and deterministic.",
				},
			},
			"required": []any{"image_url", "prompt"},
		},
		Handler: func(ctx context.Context, inv *tools.Invocation, params map[string]any) (any, error) {
			imageURL, _ := params["image_url"].(string)
			prompt, _ := params["prompt"].(string)
			temperature, _ := params["temperature"].(float64)

			inv.Replier.Reply(ctx, chat.System{Text: "🚨 Analyzing..."})

			// The assistant sees masked URLs for user uploads; swap in
			// the real file URL before the vision call.
			if inv.Transport != nil {
				resolved, ok, err := inv.Transport.ResolveFileURL(ctx, imageURL)
				if err != nil {
					return nil, fmt.Errorf("resolve file url: %w", err)
				}
				if ok {
					imageURL = resolved
				}
			}

			return vision.AnalyzeImage(ctx, imageURL, prompt, float32(temperature))
		},
	}
}
