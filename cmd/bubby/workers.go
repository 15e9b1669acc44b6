package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daohoangson/bubby/internal/telegram"
)

const defaultWorkerIdleAfter = 30 * time.Minute

// chatWorkers fans inbound messages out to one goroutine per chat, so turns
// in the same conversation never interleave. Workers that stay idle past
// idleAfter retire themselves, keeping the map bounded by active chats.
// dispatch, reap and shutdown must all be called from the same goroutine.
type chatWorkers struct {
	handle    func(context.Context, telegram.Message)
	onFull    func(telegram.Message)
	idleAfter time.Duration

	retire  chan int64
	workers map[int64]*chatWorker
	wg      sync.WaitGroup
}

type chatWorker struct {
	jobs     chan telegram.Message
	enqueued int64
	done     atomic.Int64
}

func newChatWorkers(handle func(context.Context, telegram.Message), onFull func(telegram.Message), idleAfter time.Duration) *chatWorkers {
	if idleAfter <= 0 {
		idleAfter = defaultWorkerIdleAfter
	}
	return &chatWorkers{
		handle:    handle,
		onFull:    onFull,
		idleAfter: idleAfter,
		retire:    make(chan int64, 64),
		workers:   make(map[int64]*chatWorker),
	}
}

func (p *chatWorkers) dispatch(ctx context.Context, chatID int64, msg telegram.Message) {
	w, ok := p.workers[chatID]
	if !ok {
		w = &chatWorker{jobs: make(chan telegram.Message, 16)}
		p.workers[chatID] = w
		p.wg.Add(1)
		go p.run(ctx, chatID, w)
	}
	select {
	case w.jobs <- msg:
		w.enqueued++
	default:
		if p.onFull != nil {
			p.onFull(msg)
		}
	}
}

func (p *chatWorkers) run(ctx context.Context, chatID int64, w *chatWorker) {
	defer p.wg.Done()
	idle := time.NewTimer(p.idleAfter)
	defer idle.Stop()
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			p.handle(ctx, job)
			w.done.Add(1)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.idleAfter)
		case <-idle.C:
			// Ask the dispatcher to retire us; it declines if more work
			// arrived in the meantime.
			select {
			case p.retire <- chatID:
			default:
			}
			idle.Reset(p.idleAfter)
		}
	}
}

// reap closes workers that asked to retire and have no work in flight.
// Running it on the dispatch goroutine means creation and teardown of a
// chat's worker can never race.
func (p *chatWorkers) reap() {
	for {
		select {
		case chatID := <-p.retire:
			w, ok := p.workers[chatID]
			if !ok {
				continue
			}
			if w.done.Load() != w.enqueued {
				continue
			}
			close(w.jobs)
			delete(p.workers, chatID)
		default:
			return
		}
	}
}

func (p *chatWorkers) shutdown() {
	for _, w := range p.workers {
		close(w.jobs)
	}
	p.workers = make(map[int64]*chatWorker)
	p.wg.Wait()
}

func (p *chatWorkers) size() int {
	return len(p.workers)
}
