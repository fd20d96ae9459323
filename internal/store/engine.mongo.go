package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/netfoundry/ziti-console/internal/common"
	"github.com/netfoundry/ziti-console/internal/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEngine là implementation MongoDB của Engine.
// Mỗi instance quản lý một collection trong một database.
type MongoEngine struct {
	db             *mongo.Database
	collectionName string
}

// NewMongoEngine tạo engine cho một collection.
func NewMongoEngine(db *mongo.Database, collectionName string) *MongoEngine {
	return &MongoEngine{
		db:             db,
		collectionName: collectionName,
	}
}

// CollectionName trả về tên collection engine đang quản lý.
func (e *MongoEngine) CollectionName() string {
	return e.collectionName
}

func (e *MongoEngine) collection() *mongo.Collection {
	return e.db.Collection(e.collectionName)
}

// Initialize đảm bảo collection tồn tại, tạo unique index cho từng entry
// trong UniqueFields và TTL index trên updatedAt nếu có cấu hình TTL.
//
// Tên index theo quy ước u_<collection>#<field> (composite nối field bằng ';').
// ConvertMongoError dựa vào quy ước này để trả lại danh sách field vi phạm
// khi gặp lỗi duplicate key.
func (e *MongoEngine) Initialize(ctx context.Context, opts InitOptions) error {
	names, err := e.db.ListCollectionNames(ctx, bson.M{"name": e.collectionName})
	if err != nil {
		return common.ConvertMongoError(err)
	}
	if len(names) == 0 {
		if err := e.db.CreateCollection(ctx, e.collectionName); err != nil {
			return common.ConvertMongoError(err)
		}
	}

	indexModels := make([]mongo.IndexModel, 0, len(opts.UniqueFields))
	for _, fields := range opts.UniqueFields {
		if len(fields) == 0 {
			continue
		}
		keys := bson.D{}
		partial := bson.D{}
		for _, field := range fields {
			keys = append(keys, bson.E{Key: field, Value: 1})
			partial = append(partial, bson.E{Key: field, Value: bson.M{"$exists": true}})
		}
		indexModels = append(indexModels, mongo.IndexModel{
			Keys: keys,
			Options: options.Index().
				SetName(UniqueIndexName(e.collectionName, fields)).
				SetUnique(true).
				SetPartialFilterExpression(partial),
		})
	}

	if len(indexModels) > 0 {
		if _, err := e.collection().Indexes().CreateMany(ctx, indexModels); err != nil {
			return common.NewEngineError(
				fmt.Sprintf("Không tạo được unique index cho collection %s", e.collectionName), err)
		}
	}

	if opts.TTLSeconds > 0 {
		ttlIndex := mongo.IndexModel{
			Keys:    bson.D{{Key: "updatedAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(opts.TTLSeconds),
		}
		if _, err := e.collection().Indexes().CreateOne(ctx, ttlIndex); err != nil {
			return common.NewEngineError(
				fmt.Sprintf("Không tạo được TTL index cho collection %s", e.collectionName), err)
		}
	}

	logger.GetAppLogger().WithField("collection", e.collectionName).
		Info("Đã khởi tạo collection và indexes")
	return nil
}

// UniqueIndexName trả về tên unique index theo quy ước u_<collection>#<fields>.
func UniqueIndexName(collection string, fields UniqueField) string {
	return fmt.Sprintf("u_%s#%s", collection, strings.Join(fields, ";"))
}

// Destroy xóa collection nếu tồn tại.
func (e *MongoEngine) Destroy(ctx context.Context) error {
	names, err := e.db.ListCollectionNames(ctx, bson.M{"name": e.collectionName})
	if err != nil {
		return common.ConvertMongoError(err)
	}
	if len(names) == 0 {
		return nil
	}
	if err := e.collection().Drop(ctx); err != nil {
		return common.ConvertMongoError(err)
	}
	return nil
}

// InsertOne ghi một document vào collection.
func (e *MongoEngine) InsertOne(ctx context.Context, doc Document) error {
	if _, err := e.collection().InsertOne(ctx, doc); err != nil {
		logger.GetAppLogger().WithError(err).WithField("collection", e.collectionName).
			Error("Insert document thất bại")
		return common.ConvertMongoError(err)
	}
	return nil
}

// UpdateOne thay thế toàn bộ document đầu tiên khớp filter.
func (e *MongoEngine) UpdateOne(ctx context.Context, filter Document, doc Document) (int64, error) {
	result, err := e.collection().ReplaceOne(ctx, filter, doc)
	if err != nil {
		logger.GetAppLogger().WithError(err).WithField("collection", e.collectionName).
			Error("Update document thất bại")
		return 0, common.ConvertMongoError(err)
	}
	return result.ModifiedCount, nil
}

// RemoveOne xóa document đầu tiên khớp criteria.
func (e *MongoEngine) RemoveOne(ctx context.Context, criteria Document) (int64, error) {
	result, err := e.collection().DeleteOne(ctx, criteria)
	if err != nil {
		logger.GetAppLogger().WithError(err).WithField("collection", e.collectionName).
			Error("RemoveOne thất bại")
		return 0, common.ConvertMongoError(err)
	}
	return result.DeletedCount, nil
}

// RemoveMany xóa tất cả document khớp criteria.
func (e *MongoEngine) RemoveMany(ctx context.Context, criteria Document) (int64, error) {
	result, err := e.collection().DeleteMany(ctx, criteria)
	if err != nil {
		logger.GetAppLogger().WithError(err).WithField("collection", e.collectionName).
			Error("RemoveMany thất bại")
		return 0, common.ConvertMongoError(err)
	}
	return result.DeletedCount, nil
}

// Find trả về danh sách document theo filter/sort/paginate.
func (e *MongoEngine) Find(ctx context.Context, args FindArgs) ([]Document, error) {
	findOpts := options.Find()
	if len(args.Sort) > 0 {
		findOpts.SetSort(args.Sort)
	}
	if !args.ReturnAll {
		findOpts.SetSkip(args.Paginate.Skip)
		findOpts.SetLimit(args.Paginate.Limit)
	}

	cursor, err := e.collection().Find(ctx, orEmptyFilter(args.Filter), findOpts)
	if err != nil {
		logger.GetAppLogger().WithError(err).WithField("collection", e.collectionName).
			Error("Find thất bại")
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(ctx)

	docs := []Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, common.ConvertMongoError(err)
	}
	return docs, nil
}

// FindOne trả về document đầu tiên khớp filter.
func (e *MongoEngine) FindOne(ctx context.Context, filter Document) (Document, error) {
	var doc Document
	err := e.collection().FindOne(ctx, orEmptyFilter(filter)).Decode(&doc)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			logger.GetAppLogger().WithError(err).WithField("collection", e.collectionName).
				Error("FindOne thất bại")
		}
		return nil, common.ConvertMongoError(err)
	}
	return doc, nil
}

// Count đếm số document khớp filter.
func (e *MongoEngine) Count(ctx context.Context, filter Document) (int64, error) {
	count, err := e.collection().CountDocuments(ctx, orEmptyFilter(filter))
	if err != nil {
		return 0, common.ConvertMongoError(err)
	}
	return count, nil
}

// InsertArraySubDocument push một phần tử vào array property.
func (e *MongoEngine) InsertArraySubDocument(ctx context.Context, mainCriteria Document, prop string, sub any) error {
	_, err := e.collection().UpdateOne(ctx, orEmptyFilter(mainCriteria), bson.M{"$push": bson.M{prop: sub}})
	if err != nil {
		logger.GetAppLogger().WithError(err).
			WithField("collection", e.collectionName).WithField("property", prop).
			Error("Insert array sub document thất bại")
		return common.ConvertMongoError(err)
	}
	return nil
}

// RemoveArraySubDocument pull các phần tử khớp pullCriteria khỏi array property.
func (e *MongoEngine) RemoveArraySubDocument(ctx context.Context, mainCriteria Document, prop string, pullCriteria any, multi bool) (int64, error) {
	update := bson.M{"$pull": bson.M{prop: pullCriteria}}

	var modified int64
	var err error
	if multi {
		var result *mongo.UpdateResult
		result, err = e.collection().UpdateMany(ctx, orEmptyFilter(mainCriteria), update)
		if result != nil {
			modified = result.ModifiedCount
		}
	} else {
		var result *mongo.UpdateResult
		result, err = e.collection().UpdateOne(ctx, orEmptyFilter(mainCriteria), update)
		if result != nil {
			modified = result.ModifiedCount
		}
	}
	if err != nil {
		logger.GetAppLogger().WithError(err).
			WithField("collection", e.collectionName).WithField("property", prop).
			Error("Remove array sub document thất bại")
		return 0, common.ConvertMongoError(err)
	}
	return modified, nil
}

// FindArraySubDocuments unwind array property và lọc các phần tử qua aggregation:
// $match main -> $unwind -> $replaceRoot -> $match filter -> $sort -> $skip -> $limit.
func (e *MongoEngine) FindArraySubDocuments(ctx context.Context, mainCriteria Document, prop string, args FindArgs) ([]Document, error) {
	sort := args.Sort
	if len(sort) == 0 {
		sort = bson.D{{Key: "_id", Value: 1}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: orEmptyFilter(mainCriteria)}},
		{{Key: "$unwind", Value: "$" + prop}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$" + prop}}},
		{{Key: "$match", Value: orEmptyFilter(args.Filter)}},
		{{Key: "$sort", Value: sort}},
		{{Key: "$skip", Value: args.Paginate.Skip}},
		{{Key: "$limit", Value: args.Paginate.Limit}},
	}

	cursor, err := e.collection().Aggregate(ctx, pipeline)
	if err != nil {
		logger.GetAppLogger().WithError(err).
			WithField("collection", e.collectionName).WithField("property", prop).
			Error("Find array sub documents thất bại")
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(ctx)

	docs := []Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, common.ConvertMongoError(err)
	}
	return docs, nil
}

// FindOneArraySubDocument trả về phần tử đầu tiên của array property khớp filter.
func (e *MongoEngine) FindOneArraySubDocument(ctx context.Context, mainCriteria Document, prop string, filter Document) (Document, error) {
	docs, err := e.FindArraySubDocuments(ctx, mainCriteria, prop, FindArgs{
		Filter:   filter,
		Paginate: Paginate{Skip: 0, Limit: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.ErrNotFound
	}
	return docs[0], nil
}

// UpdateArraySubDocument thay thế phần tử idProp=id trong array property
// bằng positional operator.
func (e *MongoEngine) UpdateArraySubDocument(ctx context.Context, mainCriteria Document, prop string, idProp string, id any, sub Document) (int64, error) {
	filter := Document{}
	for k, v := range mainCriteria {
		filter[k] = v
	}
	filter[prop+"."+idProp] = id

	result, err := e.collection().UpdateOne(ctx, filter, bson.M{"$set": bson.M{prop + ".$": sub}})
	if err != nil {
		logger.GetAppLogger().WithError(err).
			WithField("collection", e.collectionName).WithField("property", prop).
			Error("Update array sub document thất bại")
		return 0, common.ConvertMongoError(err)
	}
	return result.ModifiedCount, nil
}

// FindFilteredByIDArraySubDocument join qua $lookup: trả về các document của
// collection này có id nằm trong array property của document bên foreign collection.
func (e *MongoEngine) FindFilteredByIDArraySubDocument(ctx context.Context, localIDProp string, foreignCollection string, foreignIDProp string, foreignID any, foreignArrayProp string, args FindArgs) ([]Document, error) {
	sort := args.Sort
	if len(sort) == 0 {
		sort = bson.D{{Key: "_id", Value: 1}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         foreignCollection,
			"localField":   localIDProp,
			"foreignField": foreignArrayProp,
			"as":           "filterByItems",
		}}},
		{{Key: "$match", Value: bson.M{"filterByItems." + foreignIDProp: foreignID}}},
		{{Key: "$project", Value: bson.M{"filterByItems": 0}}},
		{{Key: "$match", Value: orEmptyFilter(args.Filter)}},
		{{Key: "$sort", Value: sort}},
		{{Key: "$skip", Value: args.Paginate.Skip}},
		{{Key: "$limit", Value: args.Paginate.Limit}},
	}

	cursor, err := e.collection().Aggregate(ctx, pipeline)
	if err != nil {
		logger.GetAppLogger().WithError(err).WithField("collection", e.collectionName).
			Error("Find filtered by id array sub document thất bại")
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(ctx)

	docs := []Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, common.ConvertMongoError(err)
	}
	return docs, nil
}

// FindFilteredByForeignIDArraySubDocument lấy danh sách id distinct từ
// foreignResultProp của các document bên foreign collection khớp điều kiện,
// rồi Find các document của collection này có id thuộc danh sách đó.
func (e *MongoEngine) FindFilteredByForeignIDArraySubDocument(ctx context.Context, foreignCollection string, foreignArrayProp string, foreignArrayPropID any, foreignResultProp string, args FindArgs) ([]Document, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{foreignArrayProp: foreignArrayPropID}}},
		{{Key: "$project", Value: bson.M{foreignResultProp: 1}}},
		{{Key: "$unwind", Value: "$" + foreignResultProp}},
		{{Key: "$group", Value: bson.M{
			"_id": "$" + foreignResultProp,
			"id":  bson.M{"$first": "$" + foreignResultProp},
		}}},
	}

	cursor, err := e.db.Collection(foreignCollection).Aggregate(ctx, pipeline)
	if err != nil {
		logger.GetAppLogger().WithError(err).WithField("collection", e.collectionName).
			Error("Find filtered by foreign id thất bại")
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(ctx)

	idDocs := []Document{}
	if err := cursor.All(ctx, &idDocs); err != nil {
		return nil, common.ConvertMongoError(err)
	}

	ids := make([]any, 0, len(idDocs))
	for _, doc := range idDocs {
		ids = append(ids, doc["id"])
	}

	filter := Document{"$and": []any{
		Document{"id": bson.M{"$in": ids}},
		orEmptyFilter(args.Filter),
	}}

	return e.Find(ctx, FindArgs{
		Filter:    filter,
		Sort:      args.Sort,
		Paginate:  args.Paginate,
		ReturnAll: args.ReturnAll,
	})
}

// orEmptyFilter tránh truyền nil filter vào driver.
func orEmptyFilter(filter Document) Document {
	if filter == nil {
		return Document{}
	}
	return filter
}
