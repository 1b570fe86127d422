package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/ports"
	json "github.com/goccy/go-json"
)

// ChannelPair opens a connected client/server pair for one subtest.
type ChannelPair func(t *testing.T) (client, server ports.Channel)

// ChannelContractTest is a reusable test suite that verifies if an adapter complies with ports.Channel.
func ChannelContractTest(t *testing.T, open ChannelPair) {
	t.Helper()

	// 1. Ordered delivery server -> client
	t.Run("Receive_Ordered", func(t *testing.T) {
		client, server := open(t)
		defer client.Close()
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for i := 0; i < 5; i++ {
			data, _ := json.Marshal(map[string]int{"n": i})
			if err := server.Emit(ctx, domain.ChannelEvent{Name: domain.EventMessage, Data: data}); err != nil {
				t.Fatalf("emit %d: %v", i, err)
			}
		}
		for i := 0; i < 5; i++ {
			ev, err := client.Receive(ctx)
			if err != nil {
				t.Fatalf("receive %d: %v", i, err)
			}
			var got map[string]int
			if err := json.Unmarshal(ev.Data, &got); err != nil {
				t.Fatalf("decode %d: %v", i, err)
			}
			if ev.Name != domain.EventMessage || got["n"] != i {
				t.Errorf("event %d: got %s %v", i, ev.Name, got)
			}
		}
	})

	// 2. Continue client -> server
	t.Run("Emit_Continue", func(t *testing.T) {
		client, server := open(t)
		defer client.Close()
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Emit(ctx, domain.ChannelEvent{Name: domain.EventContinue, Data: domain.ContinuePayload}); err != nil {
			t.Fatalf("emit: %v", err)
		}
		ev, err := server.Receive(ctx)
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if ev.Name != domain.EventContinue || string(ev.Data) != `"continue"` {
			t.Errorf("got %s %s", ev.Name, ev.Data)
		}
	})

	// 3. Receive honours ctx
	t.Run("Receive_Cancel", func(t *testing.T) {
		client, server := open(t)
		defer client.Close()
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if _, err := client.Receive(ctx); err == nil {
			t.Error("expected an error when the context expires")
		}
	})

	// 4. Peer close ends Receive
	t.Run("Receive_AfterPeerClose", func(t *testing.T) {
		client, server := open(t)
		defer client.Close()

		if err := server.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := client.Receive(ctx); err == nil {
			t.Error("expected an error after the peer closed")
		}
	})
}
