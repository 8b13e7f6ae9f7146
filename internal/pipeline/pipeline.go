// Package pipeline assembles the reactor set: which reactors observe which
// collections and change kinds. Reactors for the same event run
// independently and are retried independently.
package pipeline

import (
	"github.com/plumefeed/backend/internal/auditlog"
	"github.com/plumefeed/backend/internal/counters"
	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/moderation"
	"github.com/plumefeed/backend/internal/notifications"
)

// Deps are the reactor implementations wired into the dispatcher
type Deps struct {
	Engine   *moderation.Engine
	Counters *counters.Maintainer
	Audit    *auditlog.Recorder
	Notify   *notifications.Service
}

// NewDispatcher builds the full reactor registry
func NewDispatcher(deps Deps) *events.Dispatcher {
	d := events.NewDispatcher()

	// Moderation: every write that can land a post in pending
	d.Register("moderation_engine", docstore.Posts,
		[]events.Kind{events.KindCreated, events.KindUpdated},
		deps.Engine.HandlePostPending)

	// Audit trail
	d.Register("audit_post_created", docstore.Posts,
		[]events.Kind{events.KindCreated},
		deps.Audit.HandlePostCreated)
	d.Register("audit_post_submitted", docstore.Posts,
		[]events.Kind{events.KindUpdated},
		deps.Audit.HandlePostUpdated)

	// Counters
	d.Register("like_counter_inc", docstore.Likes,
		[]events.Kind{events.KindCreated},
		deps.Counters.HandleLikeCreated)
	d.Register("like_counter_dec", docstore.Likes,
		[]events.Kind{events.KindDeleted},
		deps.Counters.HandleLikeDeleted)
	d.Register("comment_counter_inc", docstore.Comments,
		[]events.Kind{events.KindCreated},
		deps.Counters.HandleCommentCreated)
	d.Register("comment_counter_dec", docstore.Comments,
		[]events.Kind{events.KindDeleted},
		deps.Counters.HandleCommentDeleted)
	d.Register("follow_counter_inc", docstore.Follows,
		[]events.Kind{events.KindCreated},
		deps.Counters.HandleFollowCreated)
	d.Register("follow_counter_dec", docstore.Follows,
		[]events.Kind{events.KindDeleted},
		deps.Counters.HandleFollowDeleted)

	// Social notification fan-out
	d.Register("like_notifier", docstore.Likes,
		[]events.Kind{events.KindCreated},
		deps.Notify.HandleLikeCreated)
	d.Register("follow_notifier", docstore.Follows,
		[]events.Kind{events.KindCreated},
		deps.Notify.HandleFollowCreated)
	d.Register("comment_notifier", docstore.Comments,
		[]events.Kind{events.KindCreated},
		deps.Notify.HandleCommentCreated)

	// Administrator decisions observed through the audit trail
	d.Register("admin_action_notifier", docstore.PostEvents,
		[]events.Kind{events.KindCreated},
		deps.Notify.HandleAdminDecision)

	return d
}

// Collections lists every collection the change-stream listener watches
func Collections() []string {
	return []string{
		docstore.Posts,
		docstore.Likes,
		docstore.Comments,
		docstore.Follows,
		docstore.PostEvents,
	}
}
