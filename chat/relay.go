package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const fallbackText = "🚨 Something went wrong, please try again later."

const (
	defaultProgressTick  = time.Second
	defaultProgressGrace = 3 * time.Second
	defaultProgressCap   = 60 * time.Second
)

// Relay forwards replies to a Transport in production order while tracking
// enough state to decide, at the end of the turn, whether the user saw any
// real content. While a system notice is the newest reply, the relay keeps
// appending elapsed seconds to it on a fixed cadence.
type Relay struct {
	transport Transport
	user      User
	log       *slog.Logger

	tick  time.Duration
	grace time.Duration
	cap   time.Duration

	mu            sync.Mutex
	nonSystem     int
	system        int
	errs          []error
	systemHandles []Handle
	progressGen   int
	wg            sync.WaitGroup
}

type RelayOptions struct {
	Transport Transport
	User      User
	Logger    *slog.Logger

	// ProgressTick overrides the 1s progress-edit cadence (tests).
	ProgressTick time.Duration
	// ProgressGrace overrides the 3s delay before the first edit.
	ProgressGrace time.Duration
	// ProgressCap overrides the 60s cutoff after which the progress loop
	// silently stops even if the turn is still running.
	ProgressCap time.Duration
}

func NewRelay(opts RelayOptions) (*Relay, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("chat: transport is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := &Relay{
		transport: opts.Transport,
		user:      opts.User,
		log:       log.With("channel_id", opts.Transport.ChannelID()),
		tick:      opts.ProgressTick,
		grace:     opts.ProgressGrace,
		cap:       opts.ProgressCap,
	}
	if r.tick <= 0 {
		r.tick = defaultProgressTick
	}
	if r.grace <= 0 {
		r.grace = defaultProgressGrace
	}
	if r.cap <= 0 {
		r.cap = defaultProgressCap
	}
	return r, nil
}

// Reply sends one reply. Delivery errors are accumulated, never returned:
// the run keeps producing content and Finalize decides what the user sees.
func (r *Relay) Reply(ctx context.Context, reply Reply) {
	r.mu.Lock()
	r.progressGen++
	r.mu.Unlock()

	handle, err := r.transport.Send(ctx, reply)
	if err != nil {
		r.OnError(fmt.Errorf("send reply: %w", err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch reply := reply.(type) {
	case System:
		r.system++
		if handle != nil {
			r.systemHandles = append(r.systemHandles, handle)
			r.startProgressLocked(ctx, handle, reply.Text)
		}
	default:
		r.nonSystem++
	}
}

// OnError records a failure that should count against the fallback decision.
func (r *Relay) OnError(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.log.Error("relay_error", "error", err.Error())
}

// startProgressLocked spawns the elapsed-seconds editor for the most recent
// system message. Caller holds r.mu.
func (r *Relay) startProgressLocked(ctx context.Context, handle Handle, text string) {
	gen := r.progressGen
	startedAt := time.Now()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.tick):
			}

			r.mu.Lock()
			stale := r.progressGen != gen
			r.mu.Unlock()
			if stale {
				return
			}

			elapsed := time.Since(startedAt)
			if elapsed < r.grace {
				continue
			}
			if elapsed > r.cap {
				// Deliberate safety valve: stop editing, say nothing.
				return
			}
			label := fmt.Sprintf("%s %ds", text, int(elapsed.Seconds()))
			if err := handle.Edit(ctx, label); err != nil {
				r.log.Warn("progress_edit_failed", "error", err.Error())
			}
		}
	}()
}

// Finalize stops the progress loop and settles the turn: exactly one generic
// fallback message when nothing non-system was delivered and at least one
// error occurred, otherwise best-effort cleanup of leftover system notices.
func (r *Relay) Finalize(ctx context.Context) {
	r.mu.Lock()
	r.progressGen++
	r.mu.Unlock()
	r.wg.Wait()

	r.mu.Lock()
	nonSystem := r.nonSystem
	errs := append([]error(nil), r.errs...)
	handles := append([]Handle(nil), r.systemHandles...)
	r.mu.Unlock()

	if nonSystem == 0 && len(errs) > 0 {
		r.sendFallback(ctx, errs)
		return
	}

	if nonSystem > 0 {
		for _, handle := range handles {
			if err := handle.Delete(ctx); err != nil {
				r.log.Warn("system_cleanup_failed", "error", err.Error())
			}
		}
	}
}

func (r *Relay) sendFallback(ctx context.Context, errs []error) {
	if r.user.Admin {
		if reporter, ok := r.transport.(ErrorReporter); ok {
			payload := serializeErrors(errs)
			err := reporter.SendErrorReport(ctx, fallbackText, payload)
			if err == nil {
				return
			}
			r.log.Error("error_report_failed", "error", err.Error())
		}
	}
	if _, err := r.transport.Send(ctx, Markdown{Text: fallbackText}); err != nil {
		r.log.Error("fallback_send_failed", "error", err.Error())
	}
}

func serializeErrors(errs []error) []byte {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	payload, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return []byte(fmt.Sprintf("%v", messages))
	}
	return payload
}

// Counts reports how many non-system and system replies were delivered.
func (r *Relay) Counts() (nonSystem, system int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nonSystem, r.system
}
