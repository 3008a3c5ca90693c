package chat

import (
	"sync"

	"janusbridge/tools/safe"

	"go.uber.org/zap"
)

type fanoutJob struct {
	clients []*Client
	payload []byte
}

// Fanout delivers broadcasts on a small worker pool so a reader never writes to other sockets.
type Fanout struct {
	jobs chan fanoutJob
	log  *zap.Logger
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewFanout(workers, queue int, log *zap.Logger) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	f := &Fanout{jobs: make(chan fanoutJob, queue), log: log}
	for i := 0; i < workers; i++ {
		f.wg.Add(1)
		safe.Go("chat-fanout", f.worker)
	}
	return f
}

func (f *Fanout) worker() {
	defer f.wg.Done()
	for job := range f.jobs {
		for _, c := range job.clients {
			if !c.Enqueue(job.payload) {
				// slow or gone: skip, the reader cleans it up
				f.log.Debug("drop broadcast", zap.Uint64("user", c.ID))
			}
		}
	}
}

// Broadcast queues payload for clients. It blocks only while the job queue is full.
func (f *Fanout) Broadcast(clients []*Client, payload []byte) {
	if len(clients) == 0 || len(payload) == 0 {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	f.jobs <- fanoutJob{clients: clients, payload: payload}
}

// TryBroadcast is Broadcast without waiting: it reports false when the job queue is full or closed.
func (f *Fanout) TryBroadcast(clients []*Client, payload []byte) bool {
	if len(clients) == 0 || len(payload) == 0 {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false
	}
	select {
	case f.jobs <- fanoutJob{clients: clients, payload: payload}:
		return true
	default:
		return false
	}
}

// Close drains queued jobs and stops the workers.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.jobs)
	f.mu.Unlock()
	f.wg.Wait()
}
