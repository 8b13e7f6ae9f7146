package idem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("event-123", "ai_review_started")
	b := Key("event-123", "ai_review_started")
	assert.Equal(t, a, b, "same event and suffix must produce the same id")
}

func TestKeyDistinct(t *testing.T) {
	base := Key("event-123", "ai_review_started")

	assert.NotEqual(t, base, Key("event-124", "ai_review_started"),
		"different events must not collide")
	assert.NotEqual(t, base, Key("event-123", "ai_approved"),
		"different suffixes must not collide")

	// The separator prevents ambiguous concatenations from colliding
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}
