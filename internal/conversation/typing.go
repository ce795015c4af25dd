package conversation

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Typist turns compose keystrokes into typing signals. The first keystroke of
// a burst emits start; the stop fires once, debounce after the last keystroke.
// Each keystroke replaces the pending stop timer. While a burst lasts longer
// than refresh, start is re-sent at most once per refresh so peers' presence
// entries do not expire. refresh <= 0 disables re-sending.
type Typist struct {
	clock    clockwork.Clock
	debounce time.Duration
	refresh  time.Duration
	start    func()
	stop     func()

	mu      sync.Mutex
	active  bool
	gen     uint64
	timer   clockwork.Timer
	limiter *rate.Limiter
}

func NewTypist(clock clockwork.Clock, debounce, refresh time.Duration, start, stop func()) *Typist {
	return &Typist{
		clock:    clock,
		debounce: debounce,
		refresh:  refresh,
		start:    start,
		stop:     stop,
	}
}

// Keystroke registers compose activity.
func (t *Typist) Keystroke() {
	t.mu.Lock()
	now := t.clock.Now()
	emit := false
	if !t.active {
		t.active = true
		emit = true
		if t.refresh > 0 {
			t.limiter = rate.NewLimiter(rate.Every(t.refresh), 1)
			t.limiter.AllowN(now, 1)
		}
	} else if t.limiter != nil && t.limiter.AllowN(now, 1) {
		emit = true
	}

	t.gen++
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.AfterFunc(t.debounce, func() { t.expire(gen) })
	t.mu.Unlock()

	if emit {
		t.start()
	}
}

func (t *Typist) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.timer = nil
	t.limiter = nil
	t.mu.Unlock()

	t.stop()
}

// Reset ends the burst without emitting stop and reports whether one was active.
func (t *Typist) Reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	was := t.active
	t.active = false
	t.limiter = nil
	return was
}

// Active reports whether a burst is in progress.
func (t *Typist) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
