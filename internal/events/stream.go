package events

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/plumefeed/backend/internal/logger"
	"github.com/plumefeed/backend/internal/metrics"
)

// Listener tails the database change stream and feeds deliveries to the
// dispatcher. The change stream resume token doubles as the stable event
// id: a resumed or redelivered change carries the same token, so reactor
// side effects keyed off it stay idempotent.
//
// Delete events only carry a before-image when the collection has
// changeStreamPreAndPostImages enabled; reactors that need the deleted
// document fall back to what the deterministic document id encodes.
type Listener struct {
	db          *mongo.Database
	dispatcher  *Dispatcher
	collections []string

	resumeToken bson.Raw
}

// NewListener creates a change-stream listener over the given collections
func NewListener(db *mongo.Database, d *Dispatcher, collections []string) *Listener {
	return &Listener{
		db:          db,
		dispatcher:  d,
		collections: collections,
	}
}

type rawChange struct {
	ID            bson.Raw `bson:"_id"`
	OperationType string   `bson:"operationType"`
	FullDocument  bson.Raw `bson:"fullDocument"`
	BeforeDoc     bson.Raw `bson:"fullDocumentBeforeChange"`
	Namespace     struct {
		Collection string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// Run consumes the change stream until ctx is cancelled, reconnecting with
// exponential backoff on stream errors and resuming from the last token.
func (l *Listener) Run(ctx context.Context) error {
	m := metrics.Get()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0 // retry forever; only ctx stops us

	return backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		m.StreamConnectionAttempts.Inc()
		if err := l.consume(ctx); err != nil {
			m.StreamConnectionErrors.Inc()
			logger.Log.Warn("Change stream interrupted, reconnecting", zap.Error(err))
			return err
		}
		return backoff.Permanent(nil)
	}, backoff.WithContext(bo, ctx))
}

func (l *Listener) consume(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
			"ns.coll":       bson.M{"$in": l.collections},
		}}},
	}

	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	if l.resumeToken != nil {
		opts = opts.SetResumeAfter(l.resumeToken)
	}

	stream, err := l.db.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer stream.Close(ctx)

	logger.Log.Info("Change stream connected",
		zap.Strings("collections", l.collections),
	)

	m := metrics.Get()
	for stream.Next(ctx) {
		var change rawChange
		if err := bson.Unmarshal(stream.Current, &change); err != nil {
			logger.Log.Error("Undecodable change event", zap.Error(err))
			continue
		}

		ev := toEvent(&change)
		if ev == nil {
			continue
		}

		m.StreamEventsReceived.WithLabelValues(ev.Collection, string(ev.Kind)).Inc()
		l.dispatcher.Deliver(ctx, ev)
		l.resumeToken = stream.ResumeToken()
	}

	if ctx.Err() != nil {
		return nil
	}
	return stream.Err()
}

// toEvent converts a raw change-stream document into a pipeline event
func toEvent(change *rawChange) *Event {
	var kind Kind
	switch change.OperationType {
	case "insert":
		kind = KindCreated
	case "update", "replace":
		kind = KindUpdated
	case "delete":
		kind = KindDeleted
	default:
		return nil
	}

	return &Event{
		ID:         hex.EncodeToString(change.ID),
		Kind:       kind,
		Collection: change.Namespace.Collection,
		DocID:      change.DocumentKey.ID,
		Before:     RawSnapshot(change.BeforeDoc),
		After:      RawSnapshot(change.FullDocument),
	}
}
