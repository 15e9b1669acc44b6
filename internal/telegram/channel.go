package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/daohoangson/bubby/chat"
	"github.com/daohoangson/bubby/internal/maskedurl"
)

// Channel adapts one Telegram chat to the chat.Transport capability. It also
// implements chat.ErrorReporter by uploading diagnostic dumps as documents.
type Channel struct {
	api      *API
	chatID   int64
	maskRoot string
	log      *slog.Logger
}

type ChannelOptions struct {
	API    *API
	ChatID int64
	// MaskRoot overrides the public root of masked file URLs.
	MaskRoot string
	Logger   *slog.Logger
}

func NewChannel(opts ChannelOptions) (*Channel, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("telegram: api is required")
	}
	if opts.ChatID == 0 {
		return nil, fmt.Errorf("telegram: chat id is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		api:      opts.API,
		chatID:   opts.ChatID,
		maskRoot: opts.MaskRoot,
		log:      log,
	}, nil
}

func (c *Channel) ChannelID() string {
	return strconv.FormatInt(c.chatID, 10)
}

func (c *Channel) Send(ctx context.Context, reply chat.Reply) (chat.Handle, error) {
	switch r := reply.(type) {
	case chat.Markdown:
		html := RenderHTML(r.Text)
		messageID, err := c.api.SendMessage(ctx, c.chatID, html, "HTML")
		if err != nil {
			// Telegram rejects malformed entities outright; retry as
			// plain text so the content still reaches the user.
			c.log.Warn("telegram_html_send_error", "error", err.Error())
			messageID, err = c.api.SendMessage(ctx, c.chatID, r.Text, "")
		}
		if err != nil {
			return nil, err
		}
		return &messageHandle{api: c.api, chatID: c.chatID, messageID: messageID}, nil
	case chat.Photo:
		messageID, err := c.api.SendPhoto(ctx, c.chatID, r.URL, r.Caption)
		if err != nil {
			return nil, err
		}
		return &messageHandle{api: c.api, chatID: c.chatID, messageID: messageID}, nil
	case chat.System:
		messageID, err := c.api.SendMessage(ctx, c.chatID, r.Text, "")
		if err != nil {
			return nil, err
		}
		return &messageHandle{api: c.api, chatID: c.chatID, messageID: messageID}, nil
	default:
		return nil, fmt.Errorf("telegram: unsupported reply type %T", reply)
	}
}

func (c *Channel) Typing(ctx context.Context) error {
	return c.api.SendChatAction(ctx, c.chatID, "typing")
}

// MaskFileURL returns the stable URL the assistant sees for an uploaded file.
func (c *Channel) MaskFileURL(fileID string) string {
	return maskedurl.Build(c.maskRoot, c.ChannelID(), fileID)
}

func (c *Channel) ResolveFileURL(ctx context.Context, masked string) (string, bool, error) {
	fileID, ok := maskedurl.Extract(masked, c.ChannelID())
	if !ok {
		return "", false, nil
	}
	file, err := c.api.GetFile(ctx, fileID)
	if err != nil {
		return "", false, fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	return c.api.FileURL(file.FilePath), true, nil
}

func (c *Channel) SendErrorReport(ctx context.Context, caption string, payload []byte) error {
	return c.api.SendDocument(ctx, c.chatID, "errors.json", caption, payload)
}

type messageHandle struct {
	api       *API
	chatID    int64
	messageID int64
}

func (h *messageHandle) Edit(ctx context.Context, text string) error {
	return h.api.EditMessageText(ctx, h.chatID, h.messageID, text)
}

func (h *messageHandle) Delete(ctx context.Context) error {
	return h.api.DeleteMessage(ctx, h.chatID, h.messageID)
}
