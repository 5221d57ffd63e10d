package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"complainthub/internal/domain/entity"
	"complainthub/internal/domain/repository"
	"complainthub/pkg/errors"
	"complainthub/pkg/logger"
)

// MongoConversationRepository implements repository.ConversationRepository on
// a MongoDB collection. Index management lives here rather than on the domain
// interface; the bootstrap calls EnsureIndexes on the concrete type.
type MongoConversationRepository struct {
	collection *mongo.Collection
}

var _ repository.ConversationRepository = (*MongoConversationRepository)(nil)

func NewMongoConversationRepository(db *mongo.Database) *MongoConversationRepository {
	return &MongoConversationRepository{
		collection: db.Collection("conversations"),
	}
}

// EnsureIndexes creates the unique index that backs race-safe find-or-create:
// concurrent upserts for the same pair collide on the index, and the loser
// retries against the winner's document.
func (r *MongoConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "student", Value: 1},
			{Key: "admin", Value: 1},
			{Key: "complaintId", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Internal("Failed to create conversation indexes", err)
	}
	return nil
}

// pairFilter selects the one conversation for a (student, admin) pair and
// optional complaint scope. Roles make the pair deterministic, so looking up
// with either participant as "self" resolves to the same filter.
func pairFilter(studentID, adminID, complaintID string) bson.M {
	filter := bson.M{
		"student": studentID,
		"admin":   adminID,
	}
	if complaintID != "" {
		filter["complaintId"] = complaintID
	} else {
		filter["complaintId"] = bson.M{"$exists": false}
	}
	return filter
}

// insertDefaults seeds a brand-new conversation. Read markers start at the
// zero time ("never acknowledged") so the first message is unread to its
// recipient even when it arrives in the same write that creates the document.
func insertDefaults(now time.Time) bson.M {
	return bson.M{
		"_id":               uuid.New().String(),
		"messages":          bson.A{},
		"lastReadByStudent": time.Time{},
		"lastReadByAdmin":   time.Time{},
		"createdAt":         now,
	}
}

func (r *MongoConversationRepository) FindOrCreate(ctx context.Context, studentID, adminID, complaintID string) (*entity.Conversation, error) {
	now := time.Now()
	update := bson.M{
		"$setOnInsert": insertDefaults(now),
		"$set":         bson.M{"updatedAt": now},
	}

	conv, err := r.upsertOne(ctx, pairFilter(studentID, adminID, complaintID), update)
	if err != nil {
		return nil, errors.Internal("Failed to find or create conversation", err)
	}
	return conv, nil
}

func (r *MongoConversationRepository) Get(ctx context.Context, studentID, adminID, complaintID string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.collection.FindOne(ctx, pairFilter(studentID, adminID, complaintID)).Decode(&conv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}
	return &conv, nil
}

// AppendMessage pushes the message and creates the conversation in the same
// atomic update, so a racing first message cannot produce two documents and
// racing appends cannot overwrite each other.
func (r *MongoConversationRepository) AppendMessage(ctx context.Context, studentID, adminID, complaintID string, message entity.Message) (*entity.Conversation, error) {
	update := bson.M{
		"$setOnInsert": insertDefaults(message.CreatedAt),
		"$push":        bson.M{"messages": message},
		"$set":         bson.M{"updatedAt": message.CreatedAt},
	}

	conv, err := r.upsertOne(ctx, pairFilter(studentID, adminID, complaintID), update)
	if err != nil {
		return nil, errors.Internal("Failed to append message", err)
	}
	return conv, nil
}

func (r *MongoConversationRepository) MarkRead(ctx context.Context, studentID, adminID, complaintID string, role entity.Role, at time.Time) error {
	field := "lastReadByAdmin"
	if role == entity.RoleStudent {
		field = "lastReadByStudent"
	}

	// $max keeps the marker monotonic: concurrent calls converge to the
	// latest timestamp regardless of arrival order.
	result, err := r.collection.UpdateOne(ctx,
		pairFilter(studentID, adminID, complaintID),
		bson.M{"$max": bson.M{field: at}},
	)
	if err != nil {
		return errors.Internal("Failed to update read marker", err)
	}

	// A missing conversation is a legitimate no-op; it may not exist yet or
	// may have been deleted with its complaint.
	if result.MatchedCount == 0 {
		logger.Debug("MarkRead: no conversation for student=%s admin=%s", studentID, adminID)
	}
	return nil
}

func (r *MongoConversationRepository) DeleteByComplaintID(ctx context.Context, complaintID string) error {
	if complaintID == "" {
		return errors.BadRequest("complaintId is required", nil)
	}

	_, err := r.collection.DeleteMany(ctx, bson.M{"complaintId": complaintID})
	if err != nil {
		return errors.Internal("Failed to delete conversations for complaint", err)
	}
	return nil
}

// upsertOne runs a find-or-create upsert and retries once on a duplicate-key
// conflict, which happens when two callers race to insert the same pair; the
// retry then matches the document the winner created.
func (r *MongoConversationRepository) upsertOne(ctx context.Context, filter, update bson.M) (*entity.Conversation, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv entity.Conversation
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
