package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daohoangson/bubby/assistant"
	"github.com/daohoangson/bubby/chat"
	"github.com/daohoangson/bubby/internal/telegram"
	"github.com/daohoangson/bubby/kv"
	"github.com/daohoangson/bubby/providers/openai"
	"github.com/daohoangson/bubby/tools"
	"github.com/daohoangson/bubby/tools/builtin"
)

type speechToText interface {
	ToText(ctx context.Context, filename string, r io.Reader) (string, error)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().StringArray("telegram-admin-id", nil, "Telegram user id allowed to start new conversations (repeatable).")
	cmd.Flags().String("db-path", "", "SQLite database path.")
	cmd.Flags().String("openai-api-key", "", "OpenAI API key.")
	cmd.Flags().String("openai-assistant-id", "", "OpenAI assistant id.")

	_ = viper.BindPFlag("telegram.bot_token", cmd.Flags().Lookup("telegram-bot-token"))
	_ = viper.BindPFlag("telegram.admin_ids", cmd.Flags().Lookup("telegram-admin-id"))
	_ = viper.BindPFlag("db.path", cmd.Flags().Lookup("db-path"))
	_ = viper.BindPFlag("openai.api_key", cmd.Flags().Lookup("openai-api-key"))
	_ = viper.BindPFlag("openai.assistant_id", cmd.Flags().Lookup("openai-assistant-id"))

	return cmd
}

func runServe() error {
	logger, err := loggerFromViper()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	token := strings.TrimSpace(viper.GetString("telegram.bot_token"))
	if token == "" {
		return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or %s_TELEGRAM_BOT_TOKEN)", envPrefix)
	}

	admins := make(map[int64]bool)
	for _, s := range viper.GetStringSlice("telegram.admin_ids") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram.admin_ids entry %q: %w", s, err)
		}
		admins[id] = true
	}

	client, err := openai.New(openai.Config{
		APIKey:       viper.GetString("openai.api_key"),
		BaseURL:      viper.GetString("openai.base_url"),
		AssistantID:  viper.GetString("openai.assistant_id"),
		Model:        viper.GetString("openai.model"),
		VisionModel:  viper.GetString("openai.vision_model"),
		ImageModel:   viper.GetString("openai.image_model"),
		Instructions: viper.GetString("openai.instructions"),
		SpeechModel:  viper.GetString("openai.speech_model"),
		SpeechVoice:  viper.GetString("openai.speech_voice"),
	})
	if err != nil {
		return err
	}

	store, err := kv.OpenSQLite(kv.SQLiteOptions{Path: viper.GetString("db.path")})
	if err != nil {
		return err
	}
	defer store.Close()

	threads, err := assistant.NewThreadManager(client, store, logger)
	if err != nil {
		return err
	}
	registry := tools.NewRegistry(logger)
	if err := builtin.Register(registry, builtin.Options{Vision: client, Threads: threads}); err != nil {
		return err
	}
	orchestrator, err := assistant.NewOrchestrator(assistant.OrchestratorOptions{
		Service:      client,
		Threads:      threads,
		Registry:     registry,
		Logger:       logger,
		PollInterval: viper.GetDuration("assistant.poll_interval"),
	})
	if err != nil {
		return err
	}

	api, err := telegram.NewAPI(nil, "", token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, err := api.GetMe(ctx)
	if err != nil {
		return err
	}

	pollTimeout := viper.GetDuration("telegram.poll_timeout")
	logger.Info("bubby_start",
		"bot_username", me.Username,
		"bot_id", me.ID,
		"admin_count", len(admins),
		"poll_timeout", pollTimeout.String(),
	)

	srv := &server{
		log:           logger,
		api:           api,
		orchestrator:  orchestrator,
		threads:       threads,
		store:         store,
		speech:        client,
		synth:         client,
		admins:        admins,
		maskRoot:      viper.GetString("masked_url.root"),
		voiceMaxBytes: viper.GetInt64("telegram.voice_max_bytes"),
	}
	return srv.poll(ctx, pollTimeout)
}

type server struct {
	log           *slog.Logger
	api           *telegram.API
	orchestrator  *assistant.Orchestrator
	threads       *assistant.ThreadManager
	store         kv.Store
	speech        speechToText
	synth         telegram.Synthesizer
	admins        map[int64]bool
	maskRoot      string
	voiceMaxBytes int64
}

// poll long-polls getUpdates and hands messages to the per-chat worker pool.
func (s *server) poll(ctx context.Context, pollTimeout time.Duration) error {
	pool := newChatWorkers(
		s.handleMessage,
		func(msg telegram.Message) {
			s.log.Warn("chat_queue_full", "chat_id", msg.Chat.ID, "message_id", msg.MessageID)
			go func(chatID int64) {
				if _, err := s.api.SendMessage(ctx, chatID, "🚨 Too many pending messages, please try again later.", ""); err != nil {
					s.log.Warn("queue_full_notice_failed", "chat_id", chatID, "error", err.Error())
				}
			}(msg.Chat.ID)
		},
		0,
	)
	defer pool.shutdown()

	var offset int64
	for ctx.Err() == nil {
		updates, next, err := s.api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.log.Warn("telegram_poll_error", "error", err.Error())
			select {
			case <-ctx.Done():
			case <-time.After(3 * time.Second):
			}
			continue
		}
		offset = next

		pool.reap()
		for _, update := range updates {
			msg := update.Message
			if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
				continue
			}
			pool.dispatch(ctx, msg.Chat.ID, *msg)
		}
	}
	return nil
}

func (s *server) handleMessage(ctx context.Context, msg telegram.Message) {
	channel, err := telegram.NewChannel(telegram.ChannelOptions{
		API:      s.api,
		ChatID:   msg.Chat.ID,
		MaskRoot: s.maskRoot,
		Logger:   s.log,
	})
	if err != nil {
		s.log.Error("channel_setup_failed", "chat_id", msg.Chat.ID, "error", err.Error())
		return
	}

	// Voice messages are answered in kind: markdown replies go back as
	// synthesized voice notes with the text as caption.
	var transport chat.Transport = channel
	if msg.Voice != nil {
		voice, err := telegram.NewVoiceChannel(channel, s.synth)
		if err != nil {
			s.log.Error("channel_setup_failed", "chat_id", msg.Chat.ID, "error", err.Error())
			return
		}
		transport = voice
	}

	user := chat.User{
		ID:    strconv.FormatInt(msg.From.ID, 10),
		Name:  msg.From.DisplayName(),
		Admin: s.admins[msg.From.ID],
	}
	relay, err := chat.NewRelay(chat.RelayOptions{
		Transport: transport,
		User:      user,
		Logger:    s.log,
	})
	if err != nil {
		s.log.Error("relay_setup_failed", "chat_id", msg.Chat.ID, "error", err.Error())
		return
	}
	defer relay.Finalize(ctx)

	if s.handleCommand(ctx, relay, channel.ChannelID(), msg) {
		return
	}

	if err := channel.Typing(ctx); err != nil {
		s.log.Warn("typing_failed", "chat_id", msg.Chat.ID, "error", err.Error())
	}

	userMsg, ok := s.buildUserMessage(ctx, relay, channel, msg)
	if !ok {
		return
	}

	session := assistant.Session{ChannelID: channel.ChannelID(), User: user}
	inv := &tools.Invocation{
		Replier:   relay,
		Transport: transport,
		KV:        s.store,
		User:      user,
		ChannelID: channel.ChannelID(),
	}
	if err := s.orchestrator.Respond(ctx, session, inv, relay, userMsg); err != nil {
		var notAuthorized *assistant.NotAuthorizedError
		if errors.As(err, &notAuthorized) {
			relay.Reply(ctx, chat.Markdown{Text: notAuthorized.Error()})
			return
		}
		relay.OnError(err)
	}
}

// handleCommand services bot commands locally instead of forwarding them to
// the assistant. Returns true when the message was a known command.
func (s *server) handleCommand(ctx context.Context, relay *chat.Relay, channelID string, msg telegram.Message) bool {
	command := strings.TrimSpace(msg.Text)
	// Clients may address commands as /command@BotName in group chats.
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}

	switch command {
	case "/thread_get":
		threadID, ok, err := s.threads.Current(ctx, channelID)
		if err != nil {
			relay.OnError(err)
			return true
		}
		if !ok {
			threadID = "N/A"
		}
		relay.Reply(ctx, chat.Markdown{Text: threadID})
		return true
	case "/thread_reset":
		if err := s.threads.Reset(ctx, channelID); err != nil {
			relay.OnError(err)
			return true
		}
		relay.Reply(ctx, chat.Markdown{Text: "✅"})
		return true
	default:
		return false
	}
}

// buildUserMessage maps an inbound Telegram message to the assistant's input
// shape: text passes through, photos become caption plus masked URL, voice is
// transcribed first. ok=false means there is nothing to respond to.
func (s *server) buildUserMessage(ctx context.Context, relay *chat.Relay, channel *telegram.Channel, msg telegram.Message) (assistant.UserMessage, bool) {
	switch {
	case msg.Voice != nil:
		text, err := s.transcribeVoice(ctx, relay, msg.Voice)
		if err != nil {
			relay.OnError(err)
			return assistant.UserMessage{}, false
		}
		return assistant.UserMessage{Text: text}, true
	case len(msg.Photo) > 0:
		// Telegram lists photo sizes ascending; the last is the original.
		largest := msg.Photo[len(msg.Photo)-1]
		return assistant.UserMessage{
			Text:     msg.Caption,
			ImageURL: channel.MaskFileURL(largest.FileID),
		}, true
	case strings.TrimSpace(msg.Text) != "":
		return assistant.UserMessage{Text: msg.Text}, true
	default:
		s.log.Debug("unsupported_message", "chat_id", msg.Chat.ID, "message_id", msg.MessageID)
		return assistant.UserMessage{}, false
	}
}

func (s *server) transcribeVoice(ctx context.Context, relay *chat.Relay, voice *telegram.Voice) (string, error) {
	relay.Reply(ctx, chat.System{Text: "🚨 Transcribing..."})

	file, err := s.api.GetFile(ctx, voice.FileID)
	if err != nil {
		return "", fmt.Errorf("voice file lookup: %w", err)
	}
	data, err := s.api.DownloadFile(ctx, file.FilePath, s.voiceMaxBytes)
	if err != nil {
		return "", fmt.Errorf("voice download: %w", err)
	}
	text, err := s.speech.ToText(ctx, path.Base(file.FilePath), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("voice transcription: %w", err)
	}
	return text, nil
}
