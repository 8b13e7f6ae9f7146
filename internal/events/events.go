// Package events defines the change-event model the reactors consume and
// the dispatcher that fans a delivery out to every registered reactor.
// Delivery is at-least-once with no ordering guarantee; every reactor must
// tolerate replays and concurrent deliveries for the same document.
package events

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/plumefeed/backend/internal/errors"
)

// Kind is the type of document change that produced an event
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// Snapshot is a point-in-time copy of a document carried on an event.
// A zero Snapshot means the document did not exist on that side of the
// change (Before on creates, After on deletes).
type Snapshot struct {
	raw []byte
}

// NewSnapshot captures doc as a snapshot. Used by the change-stream
// listener and by tests building events by hand.
func NewSnapshot(doc any) Snapshot {
	if doc == nil {
		return Snapshot{}
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return Snapshot{}
	}
	return Snapshot{raw: raw}
}

// RawSnapshot wraps already-encoded BSON bytes
func RawSnapshot(raw []byte) Snapshot {
	return Snapshot{raw: raw}
}

// Exists reports whether the document existed on this side of the change
func (s Snapshot) Exists() bool {
	return len(s.raw) > 0
}

// Decode unmarshals the snapshot into out
func (s Snapshot) Decode(out any) error {
	if !s.Exists() {
		return errors.NotFound("snapshot document")
	}
	if err := bson.Unmarshal(s.raw, out); err != nil {
		return errors.Internal("snapshot decode", err)
	}
	return nil
}

// Event is one change-event delivery. ID is stable across redeliveries of
// the same underlying change, which is what makes deterministic secondary
// ids possible.
type Event struct {
	ID         string
	Kind       Kind
	Collection string
	DocID      string
	Before     Snapshot
	After      Snapshot
}
