package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/daohoangson/bubby/chat"
	"github.com/daohoangson/bubby/kv"
)

const (
	threadIDKey = "assistant-thread-id"
	memoryKey   = "memory"
)

// Session identifies the conversation a message belongs to.
type Session struct {
	ChannelID string
	User      chat.User
}

// ThreadManager resolves, creates and persists the assistant thread id for a
// channel. At most one thread id is current per channel; replacing it is a
// single KV write, last write wins.
type ThreadManager struct {
	svc   Service
	store kv.Store
	log   *slog.Logger
}

func NewThreadManager(svc Service, store kv.Store, log *slog.Logger) (*ThreadManager, error) {
	if svc == nil {
		return nil, fmt.Errorf("assistant: service is required")
	}
	if store == nil {
		return nil, fmt.Errorf("assistant: kv store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ThreadManager{svc: svc, store: store, log: log}, nil
}

// Resolve returns the persisted thread id, creating one lazily for admitted
// users. Unknown users get NotAuthorizedError before anything is written.
func (m *ThreadManager) Resolve(ctx context.Context, session Session) (string, error) {
	threadID, ok, err := m.store.Get(ctx, session.ChannelID, threadIDKey)
	if err != nil {
		return "", fmt.Errorf("assistant: read thread id: %w", err)
	}
	if ok {
		return threadID, nil
	}

	if !session.User.Admin {
		return "", &NotAuthorizedError{UserID: session.User.ID}
	}
	return m.ForceNew(ctx, session)
}

// ForceNew creates a fresh thread seeded with the channel's persisted memory
// and makes it current. Callers have already passed admission for this turn.
func (m *ThreadManager) ForceNew(ctx context.Context, session Session) (string, error) {
	memory, ok, err := m.store.Get(ctx, session.ChannelID, memoryKey)
	if err != nil {
		return "", fmt.Errorf("assistant: read memory: %w", err)
	}
	if !ok {
		memory = defaultMemory(session.User.Name)
	}

	threadID, err := m.svc.CreateThread(ctx, []SeedMessage{{
		Role: "user",
		Text: fmt.Sprintf("---- START OF MEMORY ----\n%s\n---- END OF MEMORY ----", memory),
	}})
	if err != nil {
		return "", fmt.Errorf("assistant: create thread: %w", err)
	}
	if err := m.store.Set(ctx, session.ChannelID, threadIDKey, threadID); err != nil {
		return "", fmt.Errorf("assistant: persist thread id: %w", err)
	}

	m.log.Info("thread_created", "channel_id", session.ChannelID, "thread_id", threadID)
	return threadID, nil
}

// Current returns the channel's persisted thread id without creating one.
func (m *ThreadManager) Current(ctx context.Context, channelID string) (string, bool, error) {
	return m.store.Get(ctx, channelID, threadIDKey)
}

// Reset forgets the current thread id. The next admitted message starts a
// fresh thread; strangers are back to the admission gate.
func (m *ThreadManager) Reset(ctx context.Context, channelID string) error {
	if err := m.store.Delete(ctx, channelID, threadIDKey); err != nil {
		return fmt.Errorf("assistant: reset thread id: %w", err)
	}
	m.log.Info("thread_reset", "channel_id", channelID)
	return nil
}

// Memory returns the channel's persisted memory blob, if any.
func (m *ThreadManager) Memory(ctx context.Context, channelID string) (string, bool, error) {
	return m.store.Get(ctx, channelID, memoryKey)
}

// OverwriteMemory replaces the channel's memory blob.
func (m *ThreadManager) OverwriteMemory(ctx context.Context, channelID, memory string) error {
	return m.store.Set(ctx, channelID, memoryKey, memory)
}

func defaultMemory(userName string) string {
	if userName == "" {
		userName = "Unknown"
	}
	return fmt.Sprintf("User's name: %s\nUser's date of birth: Unknown\nUser's relationship status: Unknown", userName)
}
