/*
Package sequencer serializes every access that mutates the mirrored tree.

A Sequencer is a FIFO ticket lock: critical sections start strictly in the
order Do was called, independently of how the Go scheduler wakes goroutines.
The lock is released when fn returns, fails or panics. A caller whose context
is cancelled while queued leaves the queue without disturbing later callers,
but once fn has started it runs to completion.

When several processes observe the same run, a ports.DistributedLocker can be
layered on top; it is acquired inside the local lock so that the local FIFO
order is preserved.
*/
package sequencer
