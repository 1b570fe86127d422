/*
Package argview mirrors the tree of a remote ARG process and gates its execution.

The remote process streams structural edit messages (create, add, delete) and
pause requests (wait) over a persistent connection. argview applies them
strictly in arrival order to an in-memory tree and publishes an immutable
snapshot after every change. Renderers read snapshots without locking and
release a paused remote with Continue.

# Concept

Every inbound message, local edit and continue request runs inside one FIFO
critical section, so a renderer never observes a half-applied message and a
continue is only emitted after every message received before it was applied.
Mutations copy the path from the root to the edited node and share the rest,
which keeps older snapshots valid.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/argview"
	)

	func main() {
		eng, err := argview.New()
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		ctx := context.Background()
		if err := eng.Connect(ctx, "http://localhost:8080"); err != nil {
			log.Fatal(err)
		}

		updates, stop := eng.Subscribe()
		defer stop()
		for snap := range updates {
			log.Printf("v%d: %d nodes, gate %s", snap.Version, snap.NodeCount, snap.Gate.Status)
			if snap.Gate.CanContinue() {
				if _, err := eng.Continue(ctx); err != nil {
					log.Print(err)
				}
			}
		}
	}

# Extensibility

  - ports.Dialer / ports.Channel: transports (websocket by default, in-memory pipes for tests).
  - ports.SnapshotStore: retain snapshots in memory, files or Redis.
  - ports.Journal: record inbound events (SQLite) for inspection and replay.
  - domain.Hooks: observe applies, rejections, gate and connection changes.
*/
package argview
