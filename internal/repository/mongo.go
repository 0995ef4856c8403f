package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	transactionsCollection = "transactions"
	unmatchedCollection    = "unmatched_events"
)

type mongoEvent struct {
	ReceivedAt         time.Time `bson:"received_at"`
	Payload            string    `bson:"payload,omitempty"`
	DedupKey           string    `bson:"dedup_key"`
	Source             string    `bson:"source"`
	Outcome            string    `bson:"outcome"`
	Disposition        string    `bson:"disposition"`
	FromStatus         string    `bson:"from_status"`
	ToStatus           string    `bson:"to_status"`
	Reason             string    `bson:"reason,omitempty"`
	Receipt            string    `bson:"receipt,omitempty"`
	SecondaryReference string    `bson:"secondary_reference,omitempty"`
}

type mongoTransaction struct {
	CreatedAt          time.Time      `bson:"created_at"`
	UpdatedAt          time.Time      `bson:"updated_at"`
	Metadata           map[string]any `bson:"metadata,omitempty"`
	ID                 string         `bson:"_id"`
	GatewayKind        string         `bson:"gateway_kind"`
	GatewayReference   string         `bson:"gateway_reference"`
	SecondaryReference string         `bson:"secondary_reference"`
	Receipt            string         `bson:"receipt"`
	FailureReason      string         `bson:"failure_reason"`
	UserRef            string         `bson:"user_ref"`
	Amount             string         `bson:"amount"`
	Currency           string         `bson:"currency"`
	Status             string         `bson:"status"`
	RawEvents          []mongoEvent   `bson:"raw_events"`
	Version            int64          `bson:"version"`
}

type mongoUnmatched struct {
	ReceivedAt       time.Time `bson:"received_at"`
	Payload          string    `bson:"payload,omitempty"`
	GatewayKind      string    `bson:"gateway_kind"`
	DedupKey         string    `bson:"dedup_key"`
	GatewayReference string    `bson:"gateway_reference"`
	Outcome          string    `bson:"outcome"`
}

// mongoTransactionRepository stores each transaction as one document with its
// events embedded, so a transition and its event land in a single atomic update.
type mongoTransactionRepository struct {
	transactions *mongo.Collection
	unmatched    *mongo.Collection
}

// NewMongoTransactionRepository creates a MongoDB-backed TransactionRepository and ensures its indexes
func NewMongoTransactionRepository(ctx context.Context, database *mongo.Database) (TransactionRepository, error) {
	r := &mongoTransactionRepository{
		transactions: database.Collection(transactionsCollection),
		unmatched:    database.Collection(unmatchedCollection),
	}

	_, err := r.transactions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "gateway_kind", Value: 1}, {Key: "gateway_reference", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("gateway_reference_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction index: %w", err)
	}

	_, err = r.unmatched.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "gateway_kind", Value: 1}, {Key: "dedup_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unmatched_dedup_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create unmatched index: %w", err)
	}

	return r, nil
}

func (r *mongoTransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.Version == 0 {
		txn.Version = 1
	}
	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	for i := range txn.RawEvents {
		txn.RawEvents[i].Seq = i + 1
	}

	_, err := r.transactions.InsertOne(ctx, toMongoTransaction(txn))
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *mongoTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoTransactionRepository) FindByReference(ctx context.Context, kind models.GatewayKind, reference string) (*models.Transaction, error) {
	return r.findOne(ctx, bson.M{"gateway_kind": string(kind), "gateway_reference": reference})
}

func (r *mongoTransactionRepository) ApplyTransition(ctx context.Context, txn *models.Transaction, expectedVersion int64, event models.RawEvent) error {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":                  txn.ID.String(),
		"version":              expectedVersion,
		"raw_events.dedup_key": bson.M{"$ne": event.DedupKey},
	}
	update := bson.M{
		"$set": bson.M{
			"status":              string(txn.Status),
			"secondary_reference": txn.SecondaryReference,
			"receipt":             txn.Receipt,
			"failure_reason":      txn.FailureReason,
			"updated_at":          now,
		},
		"$inc":  bson.M{"version": 1},
		"$push": bson.M{"raw_events": toMongoEvent(event)},
	}

	result, err := r.transactions.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.classifyMiss(ctx, txn.ID, event.DedupKey)
	}

	txn.Version = expectedVersion + 1
	txn.UpdatedAt = now
	event.Seq = len(txn.RawEvents) + 1
	txn.RawEvents = append(txn.RawEvents, event)
	return nil
}

func (r *mongoTransactionRepository) AppendEvent(ctx context.Context, id uuid.UUID, event models.RawEvent) (bool, error) {
	filter := bson.M{
		"_id":                  id.String(),
		"raw_events.dedup_key": bson.M{"$ne": event.DedupKey},
	}
	update := bson.M{"$push": bson.M{"raw_events": toMongoEvent(event)}}

	result, err := r.transactions.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to append transaction event: %w", err)
	}
	if result.MatchedCount == 0 {
		if err := r.classifyMiss(ctx, id, event.DedupKey); !errors.Is(err, models.ErrDuplicateEvent) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *mongoTransactionRepository) RecordUnmatched(ctx context.Context, event *models.UnmatchedEvent) error {
	doc := mongoUnmatched{
		ReceivedAt:       event.ReceivedAt,
		Payload:          string(event.Payload),
		GatewayKind:      string(event.GatewayKind),
		DedupKey:         event.DedupKey,
		GatewayReference: event.GatewayReference,
		Outcome:          string(event.Outcome),
	}
	_, err := r.unmatched.InsertOne(ctx, doc)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to record unmatched event: %w", err)
	}
	return nil
}

func (r *mongoTransactionRepository) ListUnmatched(ctx context.Context, kind models.GatewayKind, limit int) ([]models.UnmatchedEvent, error) {
	filter := bson.M{}
	if kind != "" {
		filter["gateway_kind"] = string(kind)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(int64(unmatchedLimit(limit)))

	cursor, err := r.unmatched.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched events: %w", err)
	}

	var docs []mongoUnmatched
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode unmatched events: %w", err)
	}

	events := make([]models.UnmatchedEvent, 0, len(docs))
	for _, doc := range docs {
		events = append(events, models.UnmatchedEvent{
			ReceivedAt:       doc.ReceivedAt,
			Payload:          rawJSON(doc.Payload),
			GatewayKind:      models.GatewayKind(doc.GatewayKind),
			DedupKey:         doc.DedupKey,
			GatewayReference: doc.GatewayReference,
			Outcome:          models.Outcome(doc.Outcome),
		})
	}
	return events, nil
}

func (r *mongoTransactionRepository) findOne(ctx context.Context, filter bson.M) (*models.Transaction, error) {
	var doc mongoTransaction
	err := r.transactions.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return fromMongoTransaction(&doc)
}

// classifyMiss explains why a conditional update matched nothing.
func (r *mongoTransactionRepository) classifyMiss(ctx context.Context, id uuid.UUID, dedupKey string) error {
	txn, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if txn.FindEvent(dedupKey) != nil {
		return models.ErrDuplicateEvent
	}
	return models.ErrVersionConflict
}

func toMongoTransaction(txn *models.Transaction) mongoTransaction {
	events := make([]mongoEvent, 0, len(txn.RawEvents))
	for _, ev := range txn.RawEvents {
		events = append(events, toMongoEvent(ev))
	}
	return mongoTransaction{
		CreatedAt:          txn.CreatedAt,
		UpdatedAt:          txn.UpdatedAt,
		Metadata:           txn.Metadata,
		ID:                 txn.ID.String(),
		GatewayKind:        string(txn.GatewayKind),
		GatewayReference:   txn.GatewayReference,
		SecondaryReference: txn.SecondaryReference,
		Receipt:            txn.Receipt,
		FailureReason:      txn.FailureReason,
		UserRef:            txn.UserRef,
		Amount:             txn.Amount.String(),
		Currency:           txn.Currency,
		Status:             string(txn.Status),
		RawEvents:          events,
		Version:            txn.Version,
	}
}

func fromMongoTransaction(doc *mongoTransaction) (*models.Transaction, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", doc.ID, err)
	}
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", doc.Amount, err)
	}

	txn := &models.Transaction{
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
		Metadata:           doc.Metadata,
		Amount:             amount,
		GatewayKind:        models.GatewayKind(doc.GatewayKind),
		GatewayReference:   doc.GatewayReference,
		SecondaryReference: doc.SecondaryReference,
		Receipt:            doc.Receipt,
		FailureReason:      doc.FailureReason,
		UserRef:            doc.UserRef,
		Currency:           doc.Currency,
		Status:             models.TransactionStatus(doc.Status),
		Version:            doc.Version,
		ID:                 id,
	}
	for i, ev := range doc.RawEvents {
		txn.RawEvents = append(txn.RawEvents, models.RawEvent{
			ReceivedAt:         ev.ReceivedAt,
			Payload:            rawJSON(ev.Payload),
			DedupKey:           ev.DedupKey,
			Source:             models.EventSource(ev.Source),
			Outcome:            models.Outcome(ev.Outcome),
			Disposition:        models.Disposition(ev.Disposition),
			FromStatus:         models.TransactionStatus(ev.FromStatus),
			ToStatus:           models.TransactionStatus(ev.ToStatus),
			Reason:             ev.Reason,
			Receipt:            ev.Receipt,
			SecondaryReference: ev.SecondaryReference,
			Seq:                i + 1,
		})
	}
	return txn, nil
}

func toMongoEvent(ev models.RawEvent) mongoEvent {
	return mongoEvent{
		ReceivedAt:         ev.ReceivedAt,
		Payload:            string(ev.Payload),
		DedupKey:           ev.DedupKey,
		Source:             string(ev.Source),
		Outcome:            string(ev.Outcome),
		Disposition:        string(ev.Disposition),
		FromStatus:         string(ev.FromStatus),
		ToStatus:           string(ev.ToStatus),
		Reason:             ev.Reason,
		Receipt:            ev.Receipt,
		SecondaryReference: ev.SecondaryReference,
	}
}

func rawJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
