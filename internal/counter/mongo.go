package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoCountersCollection = "counters"
	mongoResetsCollection   = "counter_resets"
	mongoCounterIndexName   = "branch_category_date"
)

// MongoStore keeps one document per (branchId, category, date). Increments
// are FindOneAndUpdate upserts with $inc; two upserts racing to create the
// same document make one of them fail on the unique index, which is reported
// as ErrDuplicateKey.
type MongoStore struct {
	counters *mongo.Collection
	resets   *mongo.Collection
	now      func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		counters: db.Collection(mongoCountersCollection),
		resets:   db.Collection(mongoResetsCollection),
		now:      time.Now,
	}
}

// EnsureIndexes creates the unique index the store relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.counters.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "branchId", Value: 1},
			{Key: "category", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName(mongoCounterIndexName),
	})
	if err != nil {
		return fmt.Errorf("create counters index: %w", err)
	}
	_, err = s.resets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create counter_resets index: %w", err)
	}
	return nil
}

func keyFilter(key Key) bson.M {
	return bson.M{
		"branchId": key.BranchID,
		"category": string(key.Category),
		"date":     key.Date,
	}
}

func (s *MongoStore) Increment(ctx context.Context, key Key, field Field) (int64, error) {
	now := s.now().UTC()

	var update bson.M
	switch field {
	case FieldKOT:
		update = bson.M{
			"$inc":         bson.M{"lastKOTNumber": 1},
			"$set":         bson.M{"updatedAt": now},
			"$setOnInsert": bson.M{"lastBillNumber": 0, "lastInvoiceNumber": 0, "createdAt": now},
		}
	default:
		// Both fields start equal and move together in one document update.
		update = bson.M{
			"$inc":         bson.M{"lastBillNumber": 1, "lastInvoiceNumber": 1},
			"$set":         bson.M{"updatedAt": now},
			"$setOnInsert": bson.M{"lastKOTNumber": 0, "createdAt": now},
		}
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc Counter
	if err := s.counters.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("increment %s counter: %w", field, err)
	}

	if field == FieldKOT {
		return doc.LastKOTNumber, nil
	}
	return doc.LastBillNumber, nil
}

func (s *MongoStore) Get(ctx context.Context, key Key) (Counter, bool, error) {
	var doc Counter
	err := s.counters.FindOne(ctx, keyFilter(key)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Counter{}, false, nil
		}
		return Counter{}, false, fmt.Errorf("get counter: %w", err)
	}
	return doc, true, nil
}

func filterDocument(filter Filter) bson.M {
	doc := bson.M{"date": filter.Date}
	if filter.BranchID != "" {
		doc["branchId"] = filter.BranchID
	}
	if filter.Category != "" {
		doc["category"] = string(filter.Category)
	}
	return doc
}

func (s *MongoStore) List(ctx context.Context, filter Filter) ([]Counter, error) {
	opts := options.Find().SetSort(bson.D{{Key: "branchId", Value: 1}, {Key: "category", Value: 1}})
	cur, err := s.counters.Find(ctx, filterDocument(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]Counter, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode counters: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Reset(ctx context.Context, filter Filter, skipKOT bool, audit ResetAudit) (int64, error) {
	set := bson.M{
		"lastBillNumber":    0,
		"lastInvoiceNumber": 0,
		"updatedAt":         s.now().UTC(),
	}
	if !skipKOT {
		set["lastKOTNumber"] = 0
	}

	res, err := s.counters.UpdateMany(ctx, filterDocument(filter), bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("reset counters: %w", err)
	}

	audit.RowsReset = res.MatchedCount
	if _, err := s.resets.InsertOne(ctx, audit); err != nil {
		return res.MatchedCount, fmt.Errorf("record counter reset: %w", err)
	}
	return res.MatchedCount, nil
}
