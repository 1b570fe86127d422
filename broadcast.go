package argview

import (
	"sync"

	"github.com/aretw0/argview/pkg/domain"
)

// broadcaster fans published snapshots out to subscribers.
// A slow subscriber loses its oldest pending snapshot, never the newest.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[chan *domain.Snapshot]struct{}
	size   int
	closed bool
}

func newBroadcaster(size int) *broadcaster {
	if size < 1 {
		size = 1
	}
	return &broadcaster{
		subs: make(map[chan *domain.Snapshot]struct{}),
		size: size,
	}
}

// subscribe registers a channel primed with current (if non-nil).
func (b *broadcaster) subscribe(current *domain.Snapshot) (<-chan *domain.Snapshot, func()) {
	ch := make(chan *domain.Snapshot, b.size)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	if current != nil {
		ch <- current
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

func (b *broadcaster) publish(snap *domain.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		deliver(ch, snap)
	}
}

func deliver(ch chan *domain.Snapshot, snap *domain.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	// Full: drop the oldest.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
