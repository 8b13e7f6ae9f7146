// Package moderation implements the decision engine that moves posts out
// of pending: it obtains text and image verdicts, combines them on the
// ALLOW < REVIEW < BLOCK lattice, and applies the outcome atomically.
package moderation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/plumefeed/backend/internal/classifier"
	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/idem"
	"github.com/plumefeed/backend/internal/logger"
	"github.com/plumefeed/backend/internal/metrics"
	"github.com/plumefeed/backend/internal/models"
	"github.com/plumefeed/backend/internal/notifications"
	"github.com/plumefeed/backend/internal/storage"
)

const fallbackRejectionReason = "This post violates our content guidelines"

// Engine is the moderation decision engine
type Engine struct {
	store  docstore.Store
	text   classifier.TextClassifier
	image  classifier.ImageClassifier
	photos storage.Resolver
	notify *notifications.Service
	now    func() time.Time
}

// NewEngine creates a moderation engine
func NewEngine(store docstore.Store, text classifier.TextClassifier, image classifier.ImageClassifier, photos storage.Resolver, notify *notifications.Service) *Engine {
	return &Engine{
		store:  store,
		text:   text,
		image:  image,
		photos: photos,
		notify: notify,
		now:    time.Now,
	}
}

// HandlePostPending runs one moderation attempt for a post snapshot.
// Registered for post creation and update events; everything that is not
// a pending post with outstanding verdicts is a no-op, which is what makes
// duplicate and concurrent deliveries safe.
//
// Classifier calls happen before the transaction; any failure there aborts
// the attempt with nothing written and the post still pending. The
// transaction then re-checks state and applies verdicts, status, audit
// events and notifications in one atomic commit.
func (e *Engine) HandlePostPending(ctx context.Context, ev *events.Event) error {
	var post models.Post
	if err := ev.After.Decode(&post); err != nil {
		return err
	}

	if post.Status != models.PostStatusPending {
		return nil
	}

	needText, needImage := outstanding(&post)
	if !needText && !needImage {
		return nil
	}

	var textVerdict, imageVerdict *classifier.Verdict
	var err error

	if needText {
		textVerdict, err = e.text.ClassifyText(ctx, post.Title, post.Text)
		if err != nil {
			return err
		}
	}
	if needImage {
		imageVerdict, err = e.evaluateImage(ctx, &post)
		if err != nil {
			return err
		}
	}

	return e.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var fresh models.Post
		if err := tx.Get(ctx, docstore.Posts, post.ID, &fresh); err != nil {
			if errors.IsNotFound(err) {
				return nil
			}
			return err
		}

		// Re-check: a concurrent delivery may have decided already, or an
		// admin may have moved the post out of pending
		if fresh.Status != models.PostStatusPending {
			return nil
		}
		freshNeedText, freshNeedImage := outstanding(&fresh)
		if !freshNeedText && !freshNeedImage {
			return nil
		}
		// A concurrent post edit can grow the outstanding set past what
		// this attempt computed; the edit's own delivery owns that work
		if (freshNeedText && textVerdict == nil) || (freshNeedImage && imageVerdict == nil) {
			return nil
		}

		return e.apply(ctx, tx, ev.ID, &fresh, textVerdict, imageVerdict)
	})
}

// apply writes this attempt's verdicts, folds them with any stored ones,
// and commits the combined outcome. Runs inside the transaction.
func (e *Engine) apply(ctx context.Context, tx docstore.Tx, eventID string, post *models.Post, textVerdict, imageVerdict *classifier.Verdict) error {
	now := e.now()
	fields := map[string]any{"updated_at": now}

	effText, err := e.effective(post.Moderation.TextRecord(), textVerdict)
	if err != nil {
		return err
	}
	effImage, err := e.effective(post.Moderation.ImageRecord(), imageVerdict)
	if err != nil {
		return err
	}

	if textVerdict != nil {
		fields["moderation.text"] = record(textVerdict, now)
	}
	if imageVerdict != nil {
		fields["moderation.image"] = record(imageVerdict, now)
	}

	decisions := []classifier.Decision{effText.decision}
	if effImage != nil {
		decisions = append(decisions, effImage.decision)
	}
	combined := classifier.Combine(decisions...)

	outcomeEvent := models.PostEventAIFlagged
	switch combined {
	case classifier.DecisionAllow:
		outcomeEvent = models.PostEventAIApproved
		fields["status"] = models.PostStatusApproved
		fields["rejection_reason"] = nil
	case classifier.DecisionBlock:
		outcomeEvent = models.PostEventAIRejected
		fields["status"] = models.PostStatusRejected
		fields["rejection_reason"] = rejectionReason(effText, effImage)
	case classifier.DecisionReview:
		// Self-loop: verdicts recorded, status stays pending for a human
	}

	if err := tx.Update(ctx, docstore.Posts, post.ID, fields); err != nil {
		return err
	}

	// Deterministically keyed audit pair: redelivery overwrites the same
	// two documents instead of duplicating them
	if err := e.appendEvent(ctx, tx, eventID, post.ID, models.PostEventAIReviewStarted, now); err != nil {
		return err
	}
	if err := e.appendEvent(ctx, tx, eventID, post.ID, outcomeEvent, now); err != nil {
		return err
	}

	if err := e.raiseNotifications(ctx, tx, post, combined, effText, effImage); err != nil {
		return err
	}

	metrics.Get().ModerationDecisions.WithLabelValues(string(combined)).Inc()
	logger.Log.Info("Moderation decision applied",
		logger.WithPostID(post.ID),
		zap.String("decision", string(combined)),
	)
	return nil
}

func (e *Engine) raiseNotifications(ctx context.Context, tx docstore.Tx, post *models.Post, combined classifier.Decision, effText, effImage *effectiveVerdict) error {
	switch combined {
	case classifier.DecisionReview:
		metadata := reviewMetadata(effText, effImage)
		if err := e.notify.RaiseAdminReview(ctx, tx, post, metadata); err != nil {
			return err
		}
		return e.notify.NotifyOutcome(ctx, tx, models.NotificationAIReview, post,
			"Your post is awaiting manual review", metadata)
	case classifier.DecisionAllow:
		return e.notify.NotifyOutcome(ctx, tx, models.NotificationAIApproved, post,
			"Your post was approved", nil)
	case classifier.DecisionBlock:
		return e.notify.NotifyOutcome(ctx, tx, models.NotificationAIRejected, post,
			"Your post was rejected: "+rejectionReason(effText, effImage), nil)
	}
	return nil
}

func (e *Engine) appendEvent(ctx context.Context, tx docstore.Tx, eventID, postID string, t models.PostEventType, now time.Time) error {
	pe := &models.PostEvent{
		ID:        idem.Key(eventID, string(t)),
		PostID:    postID,
		Type:      t,
		Actor:     models.SystemActor,
		CreatedAt: now,
	}
	return tx.Set(ctx, docstore.PostEvents, pe.ID, pe)
}

// evaluateImage obtains the image verdict, downgrading storage problems
// to a guardrail REVIEW so one bad object can never block a post forever
func (e *Engine) evaluateImage(ctx context.Context, post *models.Post) (*classifier.Verdict, error) {
	obj, err := e.photos.Resolve(ctx, post.PhotoPath)
	if err != nil {
		if errors.IsRecoverableContent(err) {
			reason := errors.Reason(err)
			metrics.Get().GuardrailVerdicts.WithLabelValues(reason).Inc()
			logger.Log.Warn("Guardrail verdict for unevaluatable photo",
				logger.WithPostID(post.ID),
				zap.String("reason", reason),
				zap.Error(err),
			)
			return &classifier.Verdict{
				Decision:     classifier.DecisionReview,
				Score:        1.0,
				Categories:   map[string]float64{reason: 1.0},
				ModelVersion: "guardrail",
			}, nil
		}
		return nil, err
	}
	return e.image.ClassifyImage(ctx, obj.Data, obj.ContentType)
}

// effectiveVerdict is a sub-verdict folded into the combination: either
// computed in this attempt or read back from a prior one
type effectiveVerdict struct {
	decision   classifier.Decision
	message    string
	score      float64
	categories map[string]float64
}

// effective prefers this attempt's verdict, falling back to the stored
// record. Returns nil when neither exists (no photo).
func (e *Engine) effective(stored *models.VerdictRecord, computed *classifier.Verdict) (*effectiveVerdict, error) {
	if computed != nil {
		return &effectiveVerdict{
			decision:   computed.Decision,
			message:    computed.Message,
			score:      computed.Score,
			categories: computed.Categories,
		}, nil
	}
	if stored == nil {
		return nil, nil
	}
	decision, err := classifier.ParseDecision(stored.Decision)
	if err != nil {
		return nil, errors.Malformed("stored verdict", err)
	}
	return &effectiveVerdict{
		decision:   decision,
		message:    stored.Message,
		score:      stored.Score,
		categories: stored.Categories,
	}, nil
}

// rejectionReason picks the user-facing reason: the image's message when
// the image blocked, else the text's, else a generic fallback. Truncated
// to the maximum stored length.
func rejectionReason(effText, effImage *effectiveVerdict) string {
	reason := ""
	if effImage != nil && effImage.decision == classifier.DecisionBlock && effImage.message != "" {
		reason = effImage.message
	} else if effText != nil && effText.decision == classifier.DecisionBlock && effText.message != "" {
		reason = effText.message
	}
	if reason == "" {
		reason = fallbackRejectionReason
	}
	return truncate(reason, models.MaxRejectionReasonLen)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// reviewMetadata surfaces the review-driving categories and score to the
// admin queue entry
func reviewMetadata(effText, effImage *effectiveVerdict) map[string]any {
	categories := map[string]float64{}
	score := 0.0
	for _, eff := range []*effectiveVerdict{effText, effImage} {
		if eff == nil {
			continue
		}
		for k, v := range eff.categories {
			if v > categories[k] {
				categories[k] = v
			}
		}
		if eff.decision != classifier.DecisionAllow && eff.score > score {
			score = eff.score
		}
	}
	return map[string]any{
		"categories": categories,
		"score":      score,
	}
}

// record converts a verdict into its persisted form
func record(v *classifier.Verdict, now time.Time) *models.VerdictRecord {
	return &models.VerdictRecord{
		Decision:     string(v.Decision),
		Score:        v.Score,
		Categories:   v.Categories,
		Message:      v.Message,
		CheckedAt:    now,
		ModelVersion: v.ModelVersion,
	}
}

// outstanding reports which sub-verdicts a pending post still needs
func outstanding(post *models.Post) (needText, needImage bool) {
	needText = post.Moderation.TextRecord() == nil
	needImage = post.PhotoPath != "" && post.Moderation.ImageRecord() == nil
	return needText, needImage
}
