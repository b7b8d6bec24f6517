package tasks

import "sync"

// subscriberBuffer is how many updates a slow subscriber may fall behind before updates are dropped.
const subscriberBuffer = 32

// ProgressHub relays the progress of running jobs to any number of subscribers.
//
// A job is open from [ProgressHub.open] until its publish channel is closed; at that point every
// subscriber channel for the job is closed too.
type ProgressHub struct {
	mu     sync.Mutex
	active map[string]map[chan ProgressUpdate]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{active: make(map[string]map[chan ProgressUpdate]struct{})}
}

// open registers job id and returns the channel its run reports to. Closing the channel ends the job's stream.
func (h *ProgressHub) open(id string) chan<- ProgressUpdate {
	h.mu.Lock()
	h.active[id] = make(map[chan ProgressUpdate]struct{})
	h.mu.Unlock()

	publish := make(chan ProgressUpdate, 16)
	go func() {
		for update := range publish {
			h.broadcast(id, update)
		}
		h.finish(id)
	}()
	return publish
}

// Subscribe returns the updates of job id and a func that stops them. The channel is closed when the job ends,
// or immediately when the job is unknown or already finished.
func (h *ProgressHub) Subscribe(id string) (<-chan ProgressUpdate, func()) {
	ch := make(chan ProgressUpdate, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.active[id]
	if !ok {
		close(ch)
		return ch, func() {}
	}
	subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.active[id]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		}
	}
}

func (h *ProgressHub) broadcast(id string, update ProgressUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.active[id] {
		select {
		case ch <- update:
		default:
		}
	}
}

func (h *ProgressHub) finish(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.active[id] {
		close(ch)
	}
	delete(h.active, id)
}
