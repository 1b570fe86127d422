package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/argview/pkg/adapters/memory"
	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/ports"
	"github.com/aretw0/argview/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe_Contract(t *testing.T) {
	tests.ChannelContractTest(t, func(t *testing.T) (ports.Channel, ports.Channel) {
		a, b := memory.NewPipe(16)
		return a, b
	})
}

func TestPipe_BufferedEventsSurviveClose(t *testing.T) {
	a, b := memory.NewPipe(4)
	ctx := context.Background()

	require.NoError(t, b.Emit(ctx, domain.ChannelEvent{Name: domain.EventMessage}))
	require.NoError(t, b.Close())

	ev, err := a.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventMessage, ev.Name)

	_, err = a.Receive(ctx)
	assert.ErrorIs(t, err, memory.ErrClosed)
	assert.ErrorIs(t, a.Emit(ctx, domain.ChannelEvent{}), memory.ErrClosed)
}

func TestDialer(t *testing.T) {
	a, _ := memory.NewPipe(1)
	d := memory.NewDialer(a)

	ch, err := d.Dial(context.Background(), "ws://x")
	require.NoError(t, err)
	assert.Same(t, a, ch)

	_, err = d.Dial(context.Background(), "ws://y")
	assert.ErrorIs(t, err, domain.ErrChannel)
	assert.Equal(t, []string{"ws://x", "ws://y"}, d.Calls)
}
