package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/ports"
)

// ErrClosed is returned by a pipe end after either side closed.
var ErrClosed = errors.New("memory channel closed")

// pipe is the shared state of two connected ends.
type pipe struct {
	once   sync.Once
	closed chan struct{}
}

func (p *pipe) close() {
	p.once.Do(func() { close(p.closed) })
}

// End is one side of an in-process channel. It implements ports.Channel.
type End struct {
	pipe *pipe
	in   <-chan domain.ChannelEvent
	out  chan<- domain.ChannelEvent
}

// NewPipe returns two connected channel ends, each able to buffer size events.
// Events already buffered are still delivered after the peer closed.
func NewPipe(size int) (*End, *End) {
	p := &pipe{closed: make(chan struct{})}
	ab := make(chan domain.ChannelEvent, size)
	ba := make(chan domain.ChannelEvent, size)
	return &End{pipe: p, in: ba, out: ab}, &End{pipe: p, in: ab, out: ba}
}

// Receive returns the next event sent by the peer.
func (e *End) Receive(ctx context.Context) (domain.ChannelEvent, error) {
	select {
	case ev := <-e.in:
		return ev, nil
	default:
	}
	select {
	case ev := <-e.in:
		return ev, nil
	case <-e.pipe.closed:
		return domain.ChannelEvent{}, ErrClosed
	case <-ctx.Done():
		return domain.ChannelEvent{}, ctx.Err()
	}
}

// Emit queues an event for the peer, blocking while its buffer is full.
func (e *End) Emit(ctx context.Context, ev domain.ChannelEvent) error {
	select {
	case <-e.pipe.closed:
		return ErrClosed
	default:
	}
	select {
	case e.out <- ev:
		return nil
	case <-e.pipe.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes both ends.
func (e *End) Close() error {
	e.pipe.close()
	return nil
}

// Dialer hands out pre-built channel ends, one per Dial call.
type Dialer struct {
	mu    sync.Mutex
	ends  []ports.Channel
	Calls []string
}

// NewDialer returns a Dialer that serves ends in order.
func NewDialer(ends ...ports.Channel) *Dialer {
	return &Dialer{ends: ends}
}

// Dial returns the next queued end or domain.ErrChannel when none is left.
func (d *Dialer) Dial(ctx context.Context, url string) (ports.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, url)
	if len(d.ends) == 0 {
		return nil, domain.ErrChannel
	}
	ch := d.ends[0]
	d.ends = d.ends[1:]
	return ch, nil
}
