package domain

import (
	"errors"
	"fmt"
)

// ErrParentNotFound is returned when a mutation targets a parent id absent from the tree.
var ErrParentNotFound = errors.New("parent not found")

// ErrChildNotFound is returned when a delete names a child id absent from the tree.
var ErrChildNotFound = errors.New("child not found")

// ErrMalformedMessage is returned when an inbound payload does not match any known message shape.
var ErrMalformedMessage = errors.New("malformed message")

// ErrChannel is returned for transport-level failures reported by the message channel.
var ErrChannel = errors.New("channel error")

// ErrDuplicateID is returned when a mutation would introduce an id already present in the tree.
var ErrDuplicateID = errors.New("duplicate node id")

// ErrInvalidNode is returned for nodes without an id, or node graphs that share or cycle references.
var ErrInvalidNode = errors.New("invalid node")

// ErrNotConnected is returned when an outbound emission is requested without a live connection.
var ErrNotConnected = errors.New("not connected")

// ErrAlreadyConnected is returned by Connect when the engine already holds a connection.
var ErrAlreadyConnected = errors.New("already connected")

// ErrSnapshotNotFound is returned when a run id has no retained snapshot.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// MessageError annotates a failure with the inbound message that produced it.
type MessageError struct {
	Seq    uint64
	Method Method
	Err    error
}

func (e *MessageError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("message %d: %v", e.Seq, e.Err)
	}
	return fmt.Sprintf("message %d (%s): %v", e.Seq, e.Method, e.Err)
}

func (e *MessageError) Unwrap() error {
	return e.Err
}
