package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/daohoangson/bubby/chat"
	"github.com/daohoangson/bubby/kv"
	"github.com/daohoangson/bubby/tools"
)

func newTestOrchestrator(t *testing.T, svc *fakeService, store kv.Store, registry *tools.Registry) (*Orchestrator, *ThreadManager) {
	t.Helper()
	if registry == nil {
		registry = tools.NewRegistry(nil)
	}
	mgr, err := NewThreadManager(svc, store, nil)
	if err != nil {
		t.Fatalf("NewThreadManager() error = %v", err)
	}
	orch, err := NewOrchestrator(OrchestratorOptions{
		Service:      svc,
		Threads:      mgr,
		Registry:     registry,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return orch, mgr
}

func TestRespond_HelloProducesMarkdownReply(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{
		runScript: []Run{
			{Status: RunStatusQueued},
			{Status: RunStatusInProgress},
			{Status: RunStatusCompleted},
		},
		messages: []Message{
			{ID: "msg_1", Role: "assistant", Texts: []string{"Hi there!"}},
		},
	}
	orch, _ := newTestOrchestrator(t, svc, kv.NewMemory(), nil)
	replier := &fakeReplier{}

	err := orch.Respond(ctx, adminSession("42"), &tools.Invocation{}, replier, UserMessage{Text: "hello"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if got := svc.threadsCreated(); got != 1 {
		t.Fatalf("created %d threads, want 1", got)
	}
	if len(svc.userMsgs) != 1 || svc.userMsgs[0].Text != "hello" {
		t.Fatalf("user messages = %#v, want the inbound text", svc.userMsgs)
	}

	replies := replier.all()
	if len(replies) == 0 {
		t.Fatalf("no replies relayed, want at least one markdown")
	}
	markdown, ok := replies[0].(chat.Markdown)
	if !ok || markdown.Text != "Hi there!" {
		t.Fatalf("replies[0] = %#v, want markdown Hi there!", replies[0])
	}
}

func TestRespond_DeliversEachMessageIDAtMostOnce(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{
		// Several polls observe the same message list; only the first
		// may deliver.
		runScript: []Run{
			{Status: RunStatusInProgress},
			{Status: RunStatusInProgress},
			{Status: RunStatusInProgress},
			{Status: RunStatusCompleted},
		},
		messages: []Message{
			{ID: "msg_1", Role: "assistant", Texts: []string{"only once"}},
			{ID: "msg_2", Role: "user", Texts: []string{"never relayed"}},
		},
	}
	orch, _ := newTestOrchestrator(t, svc, kv.NewMemory(), nil)
	replier := &fakeReplier{}

	if err := orch.Respond(ctx, adminSession("42"), &tools.Invocation{}, replier, UserMessage{Text: "hi"}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	replies := replier.all()
	if len(replies) != 1 {
		t.Fatalf("relayed %d replies, want exactly 1 (dedup by message id)", len(replies))
	}
	if markdown := replies[0].(chat.Markdown); markdown.Text != "only once" {
		t.Fatalf("reply = %#v, want the assistant message", replies[0])
	}
}

func TestRespond_DispatchesToolCallsBetweenPolls(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{
		runScript: []Run{
			{Status: RunStatusQueued},
			{Status: RunStatusInProgress},
			{Status: RunStatusRequiresAction, RequiredAction: []tools.Call{
				{ID: "call_1", Name: "generate_image", Arguments: `{"prompt":"a cat","size":"1024x1024"}`},
			}},
			{Status: RunStatusInProgress},
			{Status: RunStatusCompleted},
		},
		messages: []Message{
			{ID: "msg_1", Role: "assistant", Texts: []string{"Here is your cat."}},
		},
	}

	registry := tools.NewRegistry(nil)
	invoked := 0
	err := registry.Register(tools.Tool{
		Name:        "generate_image",
		Description: "Generate an image.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{"type": "string"},
				"size":   map[string]any{"type": "string"},
			},
			"required": []any{"prompt"},
		},
		Handler: func(ctx context.Context, inv *tools.Invocation, params map[string]any) (any, error) {
			invoked++
			inv.Replier.Reply(ctx, chat.Photo{URL: "https://img.example/cat.png", Caption: "a cat"})
			return map[string]any{"success": true}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	orch, _ := newTestOrchestrator(t, svc, kv.NewMemory(), registry)
	replier := &fakeReplier{}
	inv := &tools.Invocation{Replier: replier}

	if err := orch.Respond(ctx, adminSession("42"), inv, replier, UserMessage{Text: "draw a cat"}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if invoked != 1 {
		t.Fatalf("tool invoked %d times, want exactly 1", invoked)
	}
	batches := svc.submittedBatches()
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("submitted batches = %#v, want one batch with one output", batches)
	}
	if batches[0][0].CallID != "call_1" {
		t.Fatalf("output call id = %q, want call_1", batches[0][0].CallID)
	}

	var sawPhoto, sawMarkdown bool
	for _, reply := range replier.all() {
		switch reply.(type) {
		case chat.Photo:
			sawPhoto = true
		case chat.Markdown:
			sawMarkdown = true
		}
	}
	if !sawPhoto || !sawMarkdown {
		t.Fatalf("replies = %#v, want one photo and one markdown", replier.all())
	}
}

func TestRespond_UnexpectedStatusFailsAndReplacesThread(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	if err := store.Set(ctx, "42", "assistant-thread-id", "thread_poisoned"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	svc := &fakeService{
		runScript: []Run{{Status: RunStatus("expired")}},
	}
	orch, _ := newTestOrchestrator(t, svc, store, nil)
	replier := &fakeReplier{}

	err := orch.Respond(ctx, adminSession("42"), &tools.Invocation{}, replier, UserMessage{Text: "hi"})
	var runErr *RunFailedError
	if !errors.As(err, &runErr) {
		t.Fatalf("Respond() error = %v, want RunFailedError", err)
	}
	if err.Error() != "Something went wrong, please try again later." {
		t.Fatalf("error text = %q, want the generic apology", err.Error())
	}

	current, ok, getErr := store.Get(ctx, "42", "assistant-thread-id")
	if getErr != nil || !ok {
		t.Fatalf("Get() = %q, %v, %v, want a thread id", current, ok, getErr)
	}
	if current == "thread_poisoned" {
		t.Fatalf("thread id still %q, want a fresh replacement", current)
	}
}

func TestRespond_PropagatesNotAuthorized(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{}
	orch, _ := newTestOrchestrator(t, svc, kv.NewMemory(), nil)
	replier := &fakeReplier{}

	session := Session{ChannelID: "7", User: chat.User{ID: "99"}}
	err := orch.Respond(ctx, session, &tools.Invocation{}, replier, UserMessage{Text: "hi"})
	var notAuthorized *NotAuthorizedError
	if !errors.As(err, &notAuthorized) {
		t.Fatalf("Respond() error = %v, want NotAuthorizedError", err)
	}
	if len(svc.userMsgs) != 0 {
		t.Fatalf("created %d user messages for a rejected user, want 0", len(svc.userMsgs))
	}
}
