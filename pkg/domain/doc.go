/*
Package domain contains the core domain models of the argview engine.

It defines the tree that is mirrored from the remote process, the edit messages
that mutate it, the immutable snapshots handed to renderers and the gate state of
the wait/continue handshake. This package is kept pure and free of I/O, following
the same hexagonal layout as the adapters in pkg/adapters.

# Key Entities

  - Node: One element of the mirrored tree. Ids are assigned by the remote process.
  - Message: A decoded edit or control message (add, delete, create, wait).
  - Snapshot: An immutable, published view of the tree plus derived facts.
  - Gate: Whether the remote process is paused awaiting a continue, and whether
    the connection is up.
*/
package domain
