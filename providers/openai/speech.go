package openai

import (
	"context"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"
)

// ToText transcribes spoken audio. filename hints the container format to the
// transcription model; the audio itself streams from r.
func (c *Client) ToText(ctx context.Context, filename string, r io.Reader) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    goopenai.Whisper1,
		FilePath: filename,
		Reader:   r,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return resp.Text, nil
}

// FromText synthesizes spoken audio for a reply, as ogg/opus bytes suitable
// for a Telegram voice message.
func (c *Client) FromText(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.api.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(c.cfg.SpeechModel),
		Input:          text,
		Voice:          goopenai.SpeechVoice(c.cfg.SpeechVoice),
		ResponseFormat: goopenai.SpeechResponseFormatOpus,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("synthesize: read audio: %w", err)
	}
	return data, nil
}
