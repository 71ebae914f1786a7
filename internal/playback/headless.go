package playback

import (
	"sync"
	"time"
)

// Headless simulates playback against the wall clock: while playing, the
// position advances in real time. It stands in for a media backend in the
// CLI binary and in tests.
type Headless struct {
	mu         sync.Mutex
	paused     bool
	position   float64
	anchoredAt time.Time
	subs       map[int]func(State)
	nextSubID  int
	now        func() time.Time
}

func NewHeadless() *Headless {
	return &Headless{
		paused: true,
		subs:   make(map[int]func(State)),
		now:    time.Now,
	}
}

func (h *Headless) Play() {
	h.mu.Lock()
	if !h.paused {
		h.mu.Unlock()
		return
	}
	h.paused = false
	h.anchoredAt = h.now()
	state, subs := h.snapshotLocked()
	h.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func (h *Headless) Pause() {
	h.mu.Lock()
	if h.paused {
		h.mu.Unlock()
		return
	}
	h.settleLocked()
	h.paused = true
	state, subs := h.snapshotLocked()
	h.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func (h *Headless) CurrentTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleLocked()
	return h.position
}

func (h *Headless) SetCurrentTime(seconds float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleLocked()
	h.position = seconds
}

func (h *Headless) Subscribe(fn func(State)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSubID
	h.nextSubID++
	h.subs[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// settleLocked folds elapsed wall time into the position. Caller must hold
// h.mu.
func (h *Headless) settleLocked() {
	if h.paused {
		return
	}
	now := h.now()
	h.position += now.Sub(h.anchoredAt).Seconds()
	h.anchoredAt = now
}

func (h *Headless) snapshotLocked() (State, []func(State)) {
	state := State{Paused: h.paused, CurrentTime: h.position}
	subs := make([]func(State), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	return state, subs
}
