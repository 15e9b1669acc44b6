package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/daohoangson/bubby/chat"
	"github.com/daohoangson/bubby/tools"
)

const defaultPollInterval = 100 * time.Millisecond

// Orchestrator drives a single run to completion: poll status, service
// required actions through the registry, relay new assistant messages in
// generation order, and self-heal the thread on terminal failure.
type Orchestrator struct {
	svc          Service
	threads      *ThreadManager
	registry     *tools.Registry
	pollInterval time.Duration
	log          *slog.Logger
}

type OrchestratorOptions struct {
	Service  Service
	Threads  *ThreadManager
	Registry *tools.Registry
	Logger   *slog.Logger

	// PollInterval is the delay between status checks while the run is
	// queued or in progress. Defaults to 100ms.
	PollInterval time.Duration
}

func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("assistant: service is required")
	}
	if opts.Threads == nil {
		return nil, fmt.Errorf("assistant: thread manager is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("assistant: tool registry is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Orchestrator{
		svc:          opts.Service,
		threads:      opts.Threads,
		registry:     opts.Registry,
		pollInterval: interval,
		log:          log,
	}, nil
}

// Respond appends the user message to the channel's thread, starts a run and
// observes it until it ends. Assistant text goes to the replier as it
// appears; each message id is delivered at most once.
func (o *Orchestrator) Respond(ctx context.Context, session Session, inv *tools.Invocation, replier chat.Replier, msg UserMessage) error {
	threadID, err := o.threads.Resolve(ctx, session)
	if err != nil {
		return err
	}

	if err := o.svc.CreateMessage(ctx, threadID, msg); err != nil {
		return fmt.Errorf("assistant: create message: %w", err)
	}
	run, err := o.svc.CreateRun(ctx, threadID, o.registry.Specs())
	if err != nil {
		return fmt.Errorf("assistant: create run: %w", err)
	}

	log := o.log.With(
		"turn_id", uuid.NewString(),
		"channel_id", session.ChannelID,
		"thread_id", threadID,
		"run_id", run.ID,
	)
	log.Info("run_started", "text_len", len(msg.Text), "has_image", msg.ImageURL != "")

	seen := make(map[string]bool)
	drain := false
	for {
		// Status check and message fetch run concurrently; ordering is
		// enforced by the seen set, not by wall clock.
		fetched := make(chan struct{})
		go func() {
			defer close(fetched)
			o.relayNewMessages(ctx, threadID, run.ID, seen, replier, log)
		}()
		done, stepErr := o.step(ctx, threadID, run.ID, inv)
		<-fetched

		if stepErr != nil {
			var runErr *RunFailedError
			if errors.As(stepErr, &runErr) {
				// Replace the poisoned thread so the next message
				// starts clean instead of retrying it.
				if _, healErr := o.threads.ForceNew(ctx, session); healErr != nil {
					log.Error("thread_self_heal_failed", "error", healErr.Error())
				}
			}
			return stepErr
		}
		if drain {
			break
		}
		if done {
			// One more pass to pick up messages written right at
			// completion.
			drain = true
		}
	}

	log.Info("run_completed", "messages_delivered", len(seen))
	return nil
}

// step observes the run once. It returns done=true on completion and a
// RunFailedError for any status outside the known state set.
func (o *Orchestrator) step(ctx context.Context, threadID, runID string, inv *tools.Invocation) (bool, error) {
	run, err := o.svc.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return false, fmt.Errorf("assistant: retrieve run: %w", err)
	}

	switch run.Status {
	case RunStatusRequiresAction:
		outputs := o.registry.DispatchBatch(ctx, inv, run.RequiredAction)
		if err := o.svc.SubmitToolOutputs(ctx, threadID, runID, outputs); err != nil {
			return false, fmt.Errorf("assistant: submit tool outputs: %w", err)
		}
		return false, nil
	case RunStatusCompleted:
		return true, nil
	case RunStatusQueued, RunStatusInProgress:
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(o.pollInterval):
		}
		return false, nil
	default:
		o.log.Warn("unexpected_run_status", "run_id", runID, "status", string(run.Status))
		return false, &RunFailedError{Status: run.Status}
	}
}

// relayNewMessages forwards unseen assistant text to the replier. Fetch
// failures are logged and retried implicitly on the next loop iteration.
func (o *Orchestrator) relayNewMessages(ctx context.Context, threadID, runID string, seen map[string]bool, replier chat.Replier, log *slog.Logger) {
	messages, err := o.svc.ListRunMessages(ctx, threadID, runID)
	if err != nil {
		log.Warn("list_messages_failed", "error", err.Error())
		return
	}
	for _, message := range messages {
		if message.Role != "assistant" || seen[message.ID] {
			continue
		}
		for _, text := range message.Texts {
			if text == "" {
				continue
			}
			seen[message.ID] = true
			replier.Reply(ctx, chat.Markdown{Text: text})
		}
	}
}
