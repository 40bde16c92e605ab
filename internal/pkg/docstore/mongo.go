package docstore

import (
	"context"
	"errors"

	"github.com/moody-app/moody/internal/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo stores root documents in the users collection keyed by uid and
// sub-collection documents in their own collection keyed by "uid:id".
type Mongo struct {
	db *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (s *Mongo) locate(key Key) (*mongo.Collection, string) {
	if key.IsRoot() {
		return s.db.Collection(UsersCollection), key.UserID
	}
	return s.db.Collection(key.Collection), key.UserID + ":" + key.ID
}

func (s *Mongo) Get(ctx context.Context, key Key) (Document, error) {
	const op = "docstore.get"
	if err := key.validate(op); err != nil {
		return nil, err
	}
	coll, id := s.locate(key)
	var raw bson.M
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound(op, key.String()+" does not exist")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRemoteReadFailed, op, err)
	}
	doc := normalizeMap(raw)
	delete(doc, "_id")
	if !key.IsRoot() {
		delete(doc, "uid")
	}
	return doc, nil
}

func (s *Mongo) Merge(ctx context.Context, key Key, patch Patch) error {
	const op = "docstore.merge"
	if err := key.validate(op); err != nil {
		return err
	}
	if err := patch.validate(op); err != nil {
		return err
	}

	set := bson.M{}
	unset := bson.M{}
	current := bson.M{}
	addToSet := bson.M{}
	for path, v := range patch {
		switch x := v.(type) {
		case deleteField:
			unset[path] = ""
		case serverTimestamp:
			current[path] = true
		case arrayUnion:
			addToSet[path] = bson.M{"$each": x.items}
		default:
			set[path] = v
		}
	}
	if !key.IsRoot() {
		set["uid"] = key.UserID
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(current) > 0 {
		update["$currentDate"] = current
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(update) == 0 {
		return nil
	}

	coll, id := s.locate(key)
	_, err := coll.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return apperr.Wrap(apperr.KindRemoteWriteFailed, op, err)
	}
	return nil
}

func (s *Mongo) Replace(ctx context.Context, key Key, doc Document) error {
	const op = "docstore.replace"
	if err := key.validate(op); err != nil {
		return err
	}
	coll, id := s.locate(key)
	body := bson.M{}
	for k, v := range doc {
		body[k] = v
	}
	body["_id"] = id
	if !key.IsRoot() {
		body["uid"] = key.UserID
	}
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, body, options.Replace().SetUpsert(true))
	if err != nil {
		return apperr.Wrap(apperr.KindRemoteWriteFailed, op, err)
	}
	return nil
}

func (s *Mongo) Remove(ctx context.Context, key Key) error {
	const op = "docstore.remove"
	if err := key.validate(op); err != nil {
		return err
	}
	coll, id := s.locate(key)
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperr.Wrap(apperr.KindRemoteWriteFailed, op, err)
	}
	return nil
}

// EnsureIndexes creates the uid lookup index on the given sub-collections.
func (s *Mongo) EnsureIndexes(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		_, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "uid", Value: 1}},
		})
		if err != nil {
			return apperr.Wrapf(apperr.KindRemoteWriteFailed, "docstore.indexes", err, "create uid index on %s", name)
		}
	}
	return nil
}
