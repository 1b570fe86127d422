package ports

import (
	"context"

	"github.com/aretw0/argview/pkg/domain"
)

// Channel is one live, ordered, bidirectional connection to the remote process.
//
// Receive is called from a single reader goroutine. Emit may be called
// concurrently with Receive. After Close, both return an error.
type Channel interface {
	// Receive blocks until the next inbound event arrives, ctx is done or the
	// connection fails. io.EOF reports an orderly close by the remote.
	Receive(ctx context.Context) (domain.ChannelEvent, error)

	// Emit sends one outbound event.
	Emit(ctx context.Context, event domain.ChannelEvent) error

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer opens a Channel to the remote process at url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Channel, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Channel, error)

// Dial calls f(ctx, url).
func (f DialerFunc) Dial(ctx context.Context, url string) (Channel, error) {
	return f(ctx, url)
}
