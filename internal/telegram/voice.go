package telegram

import (
	"context"
	"fmt"

	"github.com/daohoangson/bubby/chat"
)

// Synthesizer turns reply text into spoken audio (ogg/opus bytes).
type Synthesizer interface {
	FromText(ctx context.Context, text string) ([]byte, error)
}

// VoiceChannel wraps a Channel so markdown replies come back as voice
// messages with the text as caption. The wrap is applied per turn, when the
// inbound message itself was a voice note; every other reply kind passes
// through unchanged.
type VoiceChannel struct {
	*Channel
	speech Synthesizer
}

func NewVoiceChannel(channel *Channel, speech Synthesizer) (*VoiceChannel, error) {
	if channel == nil {
		return nil, fmt.Errorf("telegram: channel is required")
	}
	if speech == nil {
		return nil, fmt.Errorf("telegram: synthesizer is required")
	}
	return &VoiceChannel{Channel: channel, speech: speech}, nil
}

func (c *VoiceChannel) Send(ctx context.Context, reply chat.Reply) (chat.Handle, error) {
	markdown, ok := reply.(chat.Markdown)
	if !ok {
		return c.Channel.Send(ctx, reply)
	}

	notice, noticeErr := c.Channel.Send(ctx, chat.System{Text: "🚨 Synthesizing..."})
	if noticeErr != nil {
		c.log.Warn("synthesizing_notice_failed", "error", noticeErr.Error())
	}
	defer func() {
		if notice == nil {
			return
		}
		if err := notice.Delete(ctx); err != nil {
			c.log.Warn("synthesizing_notice_cleanup_failed", "error", err.Error())
		}
	}()

	data, err := c.speech.FromText(ctx, markdown.Text)
	if err != nil {
		// The text still reaches the user even when synthesis is down.
		c.log.Warn("voice_synthesis_failed", "error", err.Error())
		return c.Channel.Send(ctx, markdown)
	}

	messageID, err := c.api.SendVoice(ctx, c.chatID, "speech.ogg", markdown.Text, data)
	if err != nil {
		c.log.Warn("voice_send_failed", "error", err.Error())
		return c.Channel.Send(ctx, markdown)
	}
	return &messageHandle{api: c.api, chatID: c.chatID, messageID: messageID}, nil
}
