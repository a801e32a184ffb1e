package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

const messageSeqCounter = "message_seq"

type MongoStore struct {
	users    *mongo.Collection
	messages *mongo.Collection
	counters *mongo.Collection
	timeout  time.Duration
}

func NewMongoStore(db *mongo.Database, usersColl, messagesColl string, timeout time.Duration) *MongoStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoStore{
		users:    db.Collection(usersColl),
		messages: db.Collection(messagesColl),
		counters: db.Collection("counters"),
		timeout:  timeout,
	}
}

// EnsureIndexes creates the indexes the conversation queries rely on.
func (r *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("pair_created_idx"),
		},
		{
			Keys:    bson.D{{Key: "receiverId", Value: 1}, {Key: "senderId", Value: 1}, {Key: "isRead", Value: 1}},
			Options: options.Index().SetName("unread_idx"),
		},
	})
	return domain.NewStorageError("ensure indexes", err)
}

// userKey matches both ObjectID and string primary keys in the users collection.
func userKey(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func pairFilter(a, b string) bson.M {
	return bson.M{"$or": []bson.M{
		{"senderId": a, "receiverId": b},
		{"senderId": b, "receiverId": a},
	}}
}

var conversationOrder = bson.D{{Key: "createdAt", Value: 1}, {Key: "seq", Value: 1}}

func (r *MongoStore) findUsers(ctx context.Context, op string, filter bson.M) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	opts := options.Find().SetProjection(bson.M{"password": 0})
	cur, err := r.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	defer cur.Close(ctx)
	out := []domain.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	return out, nil
}

func (r *MongoStore) FindUsersExcept(ctx context.Context, id string) ([]domain.User, error) {
	return r.findUsers(ctx, "find users", bson.M{"_id": bson.M{"$ne": userKey(id)}})
}

func (r *MongoStore) FindUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	keys := make([]any, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, userKey(id))
	}
	return r.findUsers(ctx, "find users by ids", bson.M{"_id": bson.M{"$in": keys}})
}

func (r *MongoStore) FindMessagesBetween(ctx context.Context, a, b string) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	cur, err := r.messages.Find(ctx, pairFilter(a, b), options.Find().SetSort(conversationOrder))
	if err != nil {
		return nil, domain.NewStorageError("find messages", err)
	}
	defer cur.Close(ctx)
	out := []*domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, domain.NewStorageError("find messages", err)
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, domain.NewStorageError("find messages", err)
	}
	return out, nil
}

func (r *MongoStore) LastMessageBetween(ctx context.Context, a, b string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}})
	var m domain.Message
	if err := r.messages.FindOne(ctx, pairFilter(a, b), opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, domain.NewStorageError("last message", err)
	}
	return &m, nil
}

func (r *MongoStore) nextSeq(ctx context.Context) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := r.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": messageSeqCounter},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	return doc.Value, err
}

func (r *MongoStore) InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	seq, err := r.nextSeq(ctx)
	if err != nil {
		return nil, domain.NewStorageError("insert message", err)
	}
	stored := *m
	stored.Seq = seq
	if _, err := r.messages.InsertOne(ctx, &stored); err != nil {
		return nil, domain.NewStorageError("insert message", err)
	}
	return &stored, nil
}

func unreadFilter(receiverID, senderID string) bson.M {
	return bson.M{"receiverId": receiverID, "senderId": senderID, "isRead": false}
}

func (r *MongoStore) CountUnread(ctx context.Context, receiverID, senderID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.messages.CountDocuments(ctx, unreadFilter(receiverID, senderID))
	if err != nil {
		return 0, domain.NewStorageError("count unread", err)
	}
	return int(n), nil
}

func (r *MongoStore) MarkAllRead(ctx context.Context, receiverID, senderID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.messages.UpdateMany(ctx, unreadFilter(receiverID, senderID), bson.M{"$set": bson.M{"isRead": true}})
	return domain.NewStorageError("mark read", err)
}
