// Package openai adapts the hosted OpenAI Assistants, vision, image and
// audio APIs to the capabilities the core consumes.
package openai

import (
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const defaultInstructions = `Your name is Bubby.
You are a personal assistant bot. Ensure efficient and user-friendly interaction, focusing on simplicity and clarity in communication.
You provide concise and direct answers. Maintain a straightforward and easy-going conversation tone. Keep responses brief, typically in short sentences.
You can only reply to text or photo messages.`

type Config struct {
	APIKey      string
	BaseURL     string
	AssistantID string

	// Model runs the assistant; VisionModel serves analyze_image and
	// ImageModel serves generate_image.
	Model        string
	VisionModel  string
	ImageModel   string
	Instructions string

	// SpeechModel and SpeechVoice drive spoken replies to voice messages.
	SpeechModel string
	SpeechVoice string
}

// Client implements assistant.Service, builtin.Vision and the speech
// capability on top of the OpenAI API.
type Client struct {
	api *goopenai.Client
	cfg Config
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if strings.TrimSpace(cfg.AssistantID) == "" {
		return nil, fmt.Errorf("openai: assistant id is required")
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = goopenai.GPT4oMini
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = goopenai.CreateImageModelDallE3
	}
	if cfg.Instructions == "" {
		cfg.Instructions = defaultInstructions
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = string(goopenai.TTSModel1)
	}
	if cfg.SpeechVoice == "" {
		cfg.SpeechVoice = string(goopenai.VoiceAlloy)
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{api: goopenai.NewClientWithConfig(apiCfg), cfg: cfg}, nil
}
