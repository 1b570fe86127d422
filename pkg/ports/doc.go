/*
Package ports defines the driven ports (interfaces) for the argview engine.

These interfaces decouple the synchronization core from external
implementations, allowing the engine to talk to the remote process over
different transports and to retain snapshots in various backends.

# Key Interfaces

  - Channel / Dialer: the bidirectional message channel to the remote process.
  - SnapshotStore: retains the last published snapshot per run for inspection.
  - Journal: records inbound channel events for audit and replay.
  - DistributedLocker: coordinates several argview instances observing the same run.
*/
package ports
