// Package idem derives deterministic secondary document ids from change
// event ids, so a redelivered event produces the same writes as the first
// delivery instead of new documents.
package idem

import "github.com/google/uuid"

// namespace scopes the UUIDv5 space to this pipeline's secondary documents
var namespace = uuid.MustParse("9a9c5adf-6f3a-44c2-8a17-52f4cbe4a7cd")

// Key returns a deterministic id for the side effect identified by the
// delivery's event id plus a semantic suffix. The same (eventID, suffix)
// pair always yields the same id; different pairs collide only by hash
// chance.
func Key(eventID, suffix string) string {
	return uuid.NewSHA1(namespace, []byte(eventID+":"+suffix)).String()
}
