/*
Package runtime is the tree synchronization core.

An Engine owns the live root of one run. Every inbound message, local edit,
connection change and continue request is applied inside a single
sequencer critical section; when the section changes anything observable a
new immutable domain.Snapshot is published. Readers load the latest snapshot
without locking.
*/
package runtime
