package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	collectionBillingEvents = "billing_events"
	collectionDeadLetters   = "billing_dead_letters"
)

var errDeadLetterNotFound = errors.New("dead letter not found")

// journalEntry is one line of the webhook audit trail.
type journalEntry struct {
	EventID    string                     `bson:"event_id"`
	Type       string                     `bson:"type"`
	Outcome    domain.BillingEventOutcome `bson:"outcome"`
	Reason     string                     `bson:"reason,omitempty"`
	Event      domain.BillingEvent        `bson:"event"`
	RecordedAt time.Time                  `bson:"recorded_at"`
}

type deadLetterDoc struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	Event     domain.BillingEvent `bson:"event"`
	Attempts  int                 `bson:"attempts"`
	LastError string              `bson:"last_error"`
	Resolved  bool                `bson:"resolved"`
	CreatedAt time.Time           `bson:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at"`
}

func (d deadLetterDoc) toDomain() domain.DeadLetter {
	return domain.DeadLetter{
		ID:        d.ID.Hex(),
		Event:     d.Event,
		Attempts:  d.Attempts,
		LastError: d.LastError,
		Resolved:  d.Resolved,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// BillingEventStore implements ports.BillingEventStore using MongoDB.
type BillingEventStore struct {
	events      *mongo.Collection
	deadLetters *mongo.Collection
	now         func() time.Time
}

func NewBillingEventStore(db *mongo.Database) *BillingEventStore {
	return &BillingEventStore{
		events:      db.Collection(collectionBillingEvents),
		deadLetters: db.Collection(collectionDeadLetters),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

var _ ports.BillingEventStore = (*BillingEventStore)(nil)

// Record appends the outcome of a webhook delivery to the journal.
func (s *BillingEventStore) Record(ctx context.Context, event *domain.BillingEvent, outcome domain.BillingEventOutcome, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.events.InsertOne(ctx, journalEntry{
		EventID:    event.ID,
		Type:       event.Type,
		Outcome:    outcome,
		Reason:     reason,
		Event:      *event,
		RecordedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("record billing event: %w", err)
	}
	return nil
}

// SaveDeadLetter parks a failed event for retry. The failed webhook delivery
// counts as the first attempt.
func (s *BillingEventStore) SaveDeadLetter(ctx context.Context, event *domain.BillingEvent, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := s.now()
	_, err := s.deadLetters.InsertOne(ctx, deadLetterDoc{
		Event:     *event,
		Attempts:  1,
		LastError: reason,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("save dead letter: %w", err)
	}
	return nil
}

// PendingDeadLetters returns unresolved letters below maxAttempts, oldest first.
func (s *BillingEventStore) PendingDeadLetters(ctx context.Context, maxAttempts, limit int) ([]domain.DeadLetter, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"resolved": false, "attempts": bson.M{"$lt": maxAttempts}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.deadLetters.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find dead letters: %w", err)
	}
	defer cur.Close(ctx)

	var docs []deadLetterDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode dead letters: %w", err)
	}

	letters := make([]domain.DeadLetter, 0, len(docs))
	for _, d := range docs {
		letters = append(letters, d.toDomain())
	}
	return letters, nil
}

func (s *BillingEventStore) ResolveDeadLetter(ctx context.Context, id string) error {
	return s.updateDeadLetter(ctx, id, bson.M{
		"$set": bson.M{"resolved": true, "updated_at": s.now()},
		"$inc": bson.M{"attempts": 1},
	})
}

func (s *BillingEventStore) FailDeadLetter(ctx context.Context, id, reason string) error {
	return s.updateDeadLetter(ctx, id, bson.M{
		"$set": bson.M{"last_error": reason, "updated_at": s.now()},
		"$inc": bson.M{"attempts": 1},
	})
}

func (s *BillingEventStore) updateDeadLetter(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("dead letter %q: %w", id, errDeadLetterNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.deadLetters.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update dead letter: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("dead letter %q: %w", id, errDeadLetterNotFound)
	}
	return nil
}

// EnsureIndexes creates the indexes used by the journal and the retry sweep.
func (s *BillingEventStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}},
		{Keys: bson.D{{Key: "recorded_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("billing event indexes: %w", err)
	}

	_, err := s.deadLetters.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "resolved", Value: 1}, {Key: "attempts", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("dead letter indexes: %w", err)
	}
	return nil
}
