package assistant

import (
	"context"
	"fmt"
	"sync"

	"github.com/daohoangson/bubby/chat"
	"github.com/daohoangson/bubby/kv"
	"github.com/daohoangson/bubby/tools"
)

// fakeService scripts the remote assistant API: RetrieveRun consumes the
// configured statuses in order (the last one repeats), ListRunMessages
// always returns the full message list so dedup is exercised.
type fakeService struct {
	mu sync.Mutex

	threadSeq   int
	seeds       [][]SeedMessage
	userMsgs    []UserMessage
	runScript   []Run
	retrieveIdx int
	submitted   [][]tools.Output
	messages    []Message
	listErr     error
}

func (s *fakeService) CreateThread(_ context.Context, seed []SeedMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadSeq++
	s.seeds = append(s.seeds, seed)
	return fmt.Sprintf("thread_%d", s.threadSeq), nil
}

func (s *fakeService) CreateMessage(_ context.Context, _ string, msg UserMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userMsgs = append(s.userMsgs, msg)
	return nil
}

func (s *fakeService) CreateRun(_ context.Context, threadID string, _ []tools.Spec) (Run, error) {
	return Run{ThreadID: threadID, ID: "run_1", Status: RunStatusQueued}, nil
}

func (s *fakeService) RetrieveRun(_ context.Context, threadID, runID string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runScript) == 0 {
		return Run{ThreadID: threadID, ID: runID, Status: RunStatusCompleted}, nil
	}
	idx := s.retrieveIdx
	if idx >= len(s.runScript) {
		idx = len(s.runScript) - 1
	}
	s.retrieveIdx++
	run := s.runScript[idx]
	run.ThreadID = threadID
	run.ID = runID
	return run, nil
}

func (s *fakeService) SubmitToolOutputs(_ context.Context, _, _ string, outputs []tools.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, outputs)
	return nil
}

func (s *fakeService) ListRunMessages(context.Context, string, string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]Message(nil), s.messages...), nil
}

func (s *fakeService) threadsCreated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadSeq
}

func (s *fakeService) submittedBatches() [][]tools.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]tools.Output(nil), s.submitted...)
}

// fakeReplier records replies in arrival order.
type fakeReplier struct {
	mu      sync.Mutex
	replies []chat.Reply
}

func (r *fakeReplier) Reply(_ context.Context, reply chat.Reply) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
}

func (r *fakeReplier) all() []chat.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Reply(nil), r.replies...)
}

// countingStore wraps a Store to count writes.
type countingStore struct {
	kv.Store
	mu   sync.Mutex
	sets int
}

func (s *countingStore) Set(ctx context.Context, channelID, key, value string) error {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	return s.Store.Set(ctx, channelID, key, value)
}

func (s *countingStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}
