// Package builtin registers the bot's stock tools: image generation and
// analysis, memory overwrite, and thread reset.
package builtin

import (
	"context"
	"fmt"

	"github.com/daohoangson/bubby/assistant"
	"github.com/daohoangson/bubby/tools"
)

// Vision is the image capability behind generate_image and analyze_image.
type Vision interface {
	AnalyzeImage(ctx context.Context, imageURL, prompt string, temperature float32) (string, error)
	GenerateImage(ctx context.Context, prompt, size string) (GeneratedImage, error)
}

// GeneratedImage is the result of a generation request. URL is empty when
// the provider produced nothing usable.
type GeneratedImage struct {
	URL           string
	RevisedPrompt string
}

type Options struct {
	Vision  Vision
	Threads *assistant.ThreadManager
}

// Register adds all builtin tools to the registry.
func Register(reg *tools.Registry, opts Options) error {
	if reg == nil {
		return fmt.Errorf("builtin: registry is required")
	}
	if opts.Vision == nil {
		return fmt.Errorf("builtin: vision capability is required")
	}
	if opts.Threads == nil {
		return fmt.Errorf("builtin: thread manager is required")
	}

	for _, tool := range []tools.Tool{
		generateImage(opts.Vision),
		analyzeImage(opts.Vision),
		overwriteMemory(opts.Threads),
		newThread(opts.Threads),
	} {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func sessionFromInvocation(inv *tools.Invocation) assistant.Session {
	return assistant.Session{ChannelID: inv.ChannelID, User: inv.User}
}
