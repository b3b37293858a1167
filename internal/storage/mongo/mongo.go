// Package mongo implements the record store on MongoDB. Each record kind
// lives in its own collection; retention expiry is enforced by a TTL index
// on expires_at rather than by application polling.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/careloop/visit-media-service/internal/config"
	"github.com/careloop/visit-media-service/internal/storage"
	"github.com/careloop/visit-media-service/internal/types"
)

const (
	audioCollection = "audio_records"
	photoCollection = "photo_records"
)

type Mongo struct {
	client  *mongo.Client
	audio   *mongo.Collection
	photos  *mongo.Collection
	timeout time.Duration
}

func NewMongo(cfg *config.Config) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Mongo.Database)
	m := &Mongo{
		client:  client,
		audio:   db.Collection(audioCollection),
		photos:  db.Collection(photoCollection),
		timeout: cfg.Mongo.Timeout,
	}

	if err := m.ensureIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return m, nil
}

// ensureIndexes creates the unique storage-key index, the TTL index that
// evicts records once expires_at has passed, and the query indexes.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "storage_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "visit_id", Value: 1}, {Key: "uploaded_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "uploaded_at", Value: -1}},
		},
	}

	for _, coll := range []*mongo.Collection{m.audio, m.photos} {
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return err
		}
	}

	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) CreateAudio(ctx context.Context, rec *types.AudioRecord) (string, error) {
	return m.create(ctx, m.audio, rec)
}

func (m *Mongo) CreatePhoto(ctx context.Context, rec *types.PhotoRecord) (string, error) {
	return m.create(ctx, m.photos, rec)
}

func (m *Mongo) create(ctx context.Context, coll *mongo.Collection, rec interface{}) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	res, err := coll.InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", storage.ErrDuplicateKey
		}
		return "", fmt.Errorf("failed to insert record: %w", err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}

	return id.Hex(), nil
}

func (m *Mongo) FindAudioByID(ctx context.Context, id string) (*types.AudioRecord, error) {
	var rec types.AudioRecord
	if err := m.findByID(ctx, m.audio, id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Mongo) FindPhotoByID(ctx context.Context, id string) (*types.PhotoRecord, error) {
	var rec types.PhotoRecord
	if err := m.findByID(ctx, m.photos, id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Mongo) findByID(ctx context.Context, coll *mongo.Collection, id string, out interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err = coll.FindOne(ctx, bson.M{"_id": oid}).Decode(out)
	if err == mongo.ErrNoDocuments {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find record: %w", err)
	}

	return nil
}

func (m *Mongo) ConfirmAudio(ctx context.Context, storageKey string, upd storage.ConfirmUpdate) (*types.AudioRecord, error) {
	var rec types.AudioRecord
	if err := m.confirm(ctx, m.audio, storageKey, upd, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Mongo) ConfirmPhoto(ctx context.Context, storageKey string, upd storage.ConfirmUpdate) (*types.PhotoRecord, error) {
	var rec types.PhotoRecord
	if err := m.confirm(ctx, m.photos, storageKey, upd, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// confirm is a single atomic update: the status transition and the field
// writes land together or not at all, so no reader can observe a completed
// record with a stale file size.
func (m *Mongo) confirm(ctx context.Context, coll *mongo.Collection, storageKey string, upd storage.ConfirmUpdate, out interface{}) error {
	set := bson.M{
		"processing_status": types.StatusCompleted,
		"file_size":         upd.FileSize,
		"uploaded_by":       upd.ConfirmedBy,
		"uploaded_at":       upd.ConfirmedAt,
	}
	if upd.Duration != nil {
		set["duration"] = *upd.Duration
	}
	if upd.Width != nil {
		set["width"] = *upd.Width
	}
	if upd.Height != nil {
		set["height"] = *upd.Height
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := coll.FindOneAndUpdate(ctx,
		bson.M{"storage_key": storageKey},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(out)
	if err == mongo.ErrNoDocuments {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to confirm record: %w", err)
	}

	return nil
}

func (m *Mongo) TouchAudioAccess(ctx context.Context, id, viewerID string, at time.Time) (*types.AudioRecord, error) {
	var rec types.AudioRecord
	if err := m.touchAccess(ctx, m.audio, id, viewerID, at, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Mongo) TouchPhotoAccess(ctx context.Context, id, viewerID string, at time.Time) (*types.PhotoRecord, error) {
	var rec types.PhotoRecord
	if err := m.touchAccess(ctx, m.photos, id, viewerID, at, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Mongo) touchAccess(ctx context.Context, coll *mongo.Collection, id, viewerID string, at time.Time, out interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}

	update := bson.M{
		"$inc": bson.M{"access_count": 1},
		"$set": bson.M{"last_accessed_at": at},
	}
	if viewerID != "" {
		update["$push"] = bson.M{"view_log": types.ViewEvent{ViewerID: viewerID, ViewedAt: at}}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(out)
	if err == mongo.ErrNoDocuments {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}

	return nil
}

func (m *Mongo) UpdateAudioMetadata(ctx context.Context, id string, upd storage.MetadataUpdate) (*types.AudioRecord, error) {
	var rec types.AudioRecord
	if err := m.updateMetadata(ctx, m.audio, id, upd, "recording_type", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Mongo) UpdatePhotoMetadata(ctx context.Context, id string, upd storage.MetadataUpdate) (*types.PhotoRecord, error) {
	var rec types.PhotoRecord
	if err := m.updateMetadata(ctx, m.photos, id, upd, "photo_type", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Mongo) updateMetadata(ctx context.Context, coll *mongo.Collection, id string, upd storage.MetadataUpdate, classField string, out interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}

	set := bson.M{}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Tags != nil {
		set["tags"] = upd.Tags
	}
	if upd.AccessLevel != nil {
		set["access_level"] = *upd.AccessLevel
	}
	if upd.Classification != nil {
		set[classField] = *upd.Classification
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	filter := bson.M{"_id": oid}
	if len(set) == 0 {
		// Nothing to change; still report not-found for missing records.
		err = coll.FindOne(ctx, filter).Decode(out)
	} else {
		err = coll.FindOneAndUpdate(ctx,
			filter,
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(out)
	}
	if err == mongo.ErrNoDocuments {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	return nil
}

func (m *Mongo) DeleteAudio(ctx context.Context, id string) error {
	return m.delete(ctx, m.audio, id)
}

func (m *Mongo) DeletePhoto(ctx context.Context, id string) error {
	return m.delete(ctx, m.photos, id)
}

func (m *Mongo) delete(ctx context.Context, coll *mongo.Collection, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	res, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (m *Mongo) ListAudioByVisit(ctx context.Context, visitID string) ([]types.AudioRecord, error) {
	var recs []types.AudioRecord
	if err := m.list(ctx, m.audio, bson.M{"visit_id": visitID}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (m *Mongo) ListPhotosByVisit(ctx context.Context, visitID string) ([]types.PhotoRecord, error) {
	var recs []types.PhotoRecord
	if err := m.list(ctx, m.photos, bson.M{"visit_id": visitID}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (m *Mongo) ListAudioByPatient(ctx context.Context, patientID string) ([]types.AudioRecord, error) {
	var recs []types.AudioRecord
	if err := m.list(ctx, m.audio, bson.M{"patient_id": patientID}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (m *Mongo) ListPhotosByPatient(ctx context.Context, patientID string) ([]types.PhotoRecord, error) {
	var recs []types.PhotoRecord
	if err := m.list(ctx, m.photos, bson.M{"patient_id": patientID}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (m *Mongo) ListStalePendingAudio(ctx context.Context, before time.Time) ([]types.AudioRecord, error) {
	var recs []types.AudioRecord
	filter := bson.M{"processing_status": types.StatusPending, "uploaded_at": bson.M{"$lt": before}}
	if err := m.list(ctx, m.audio, filter, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (m *Mongo) ListStalePendingPhotos(ctx context.Context, before time.Time) ([]types.PhotoRecord, error) {
	var recs []types.PhotoRecord
	filter := bson.M{"processing_status": types.StatusPending, "uploaded_at": bson.M{"$lt": before}}
	if err := m.list(ctx, m.photos, filter, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (m *Mongo) list(ctx context.Context, coll *mongo.Collection, filter bson.M, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cur, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}}))
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode records: %w", err)
	}

	return nil
}
