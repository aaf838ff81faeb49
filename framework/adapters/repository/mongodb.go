// Package repository предоставляет backends хранилища read-моделей.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// MongoConfig конфигурация для MongoDB хранилища
type MongoConfig struct {
	URI         string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
	MinPoolSize int
	// Transactions включает multi-document транзакции на Commit (нужен replica set)
	Transactions bool
	// IndexedFields поля вторичных индексов по коллекциям; индексы создаются на Start
	IndexedFields map[string][]string
}

// Validate проверяет корректность конфигурации
func (c MongoConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("URI cannot be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("database cannot be empty")
	}
	if c.MaxPoolSize <= 0 {
		return fmt.Errorf("MaxPoolSize must be greater than 0")
	}
	return nil
}

// DefaultMongoConfig возвращает конфигурацию MongoDB по умолчанию
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Database:    "course_catalog",
		Timeout:     10 * time.Second,
		MaxPoolSize: 100,
		MinPoolSize: 10,
	}
}

// mongoDocument формат строки в коллекции: данные хранятся как BSON-документ,
// индексные значения отдельным поддокументом.
type mongoDocument struct {
	ID      string            `bson:"_id"`
	Data    bson.Raw          `bson:"data"`
	Index   map[string]string `bson:"index,omitempty"`
	Version int64             `bson:"version"`
}

// MongoStore хранилище read-моделей: по одной коллекции MongoDB на семейство
type MongoStore struct {
	config MongoConfig
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore создает хранилище и проверяет подключение
func NewMongoStore(ctx context.Context, config MongoConfig) (*MongoStore, error) {
	if err := config.Validate(); err != nil {
		return nil, core.Wrap(err, core.ErrInvalidConfig, "invalid mongodb config")
	}

	opts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(uint64(config.MaxPoolSize)).
		SetMinPoolSize(uint64(config.MinPoolSize)).
		SetTimeout(config.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, core.Wrap(err, core.ErrInitializationFailed, "failed to connect to MongoDB")
	}

	return &MongoStore{
		config: config,
		client: client,
		db:     client.Database(config.Database),
	}, nil
}

// Start проверяет подключение и создает индексы (реализация core.Lifecycle)
func (m *MongoStore) Start(ctx context.Context) error {
	if err := m.client.Ping(ctx, nil); err != nil {
		return core.Wrap(err, core.ErrInitializationFailed, "failed to ping MongoDB")
	}
	for collection, fields := range m.config.IndexedFields {
		for _, field := range fields {
			model := mongo.IndexModel{
				Keys:    bson.D{{Key: "index." + field, Value: 1}},
				Options: options.Index().SetName("idx_" + field).SetSparse(true),
			}
			if _, err := m.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
				return fmt.Errorf("failed to create index %s on %s: %w", field, collection, err)
			}
		}
	}
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (m *MongoStore) Stop(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (m *MongoStore) IsRunning() bool {
	return m.client != nil
}

// Name возвращает имя компонента (реализация core.Component)
func (m *MongoStore) Name() string {
	return "mongodb-store"
}

// Type возвращает тип компонента (реализация core.Component)
func (m *MongoStore) Type() core.ComponentType {
	return core.ComponentTypeStore
}

// HealthCheck проверяет подключение к MongoDB
func (m *MongoStore) HealthCheck(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// FindByID находит строку по ID
func (m *MongoStore) FindByID(ctx context.Context, collection, id string) (readmodel.Document, error) {
	var doc mongoDocument
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return readmodel.Document{}, readmodel.NotFound(collection, id)
		}
		return readmodel.Document{}, fmt.Errorf("failed to find %s/%s: %w", collection, id, err)
	}
	data, err := toJSON(doc.Data)
	if err != nil {
		return readmodel.Document{}, err
	}
	return readmodel.Document{ID: id, Data: data, Version: doc.Version}, nil
}

// FindByIndex находит строки по значению вторичного индекса
func (m *MongoStore) FindByIndex(ctx context.Context, collection, field, value string) ([]readmodel.Document, error) {
	return m.find(ctx, collection, bson.M{"index." + field: value})
}

// FindAll возвращает все строки коллекции
func (m *MongoStore) FindAll(ctx context.Context, collection string) ([]readmodel.Document, error) {
	return m.find(ctx, collection, bson.M{})
}

func (m *MongoStore) find(ctx context.Context, collection string, filter bson.M) ([]readmodel.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := m.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	docs := make([]readmodel.Document, 0)
	for cursor.Next(ctx) {
		var doc mongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", collection, err)
		}
		data, err := toJSON(doc.Data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, readmodel.Document{ID: doc.ID, Data: data, Version: doc.Version})
	}
	return docs, cursor.Err()
}

// Commit применяет операции; при Transactions=true в одной транзакции
func (m *MongoStore) Commit(ctx context.Context, ops []readmodel.Op) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}

	if !m.config.Transactions {
		n, err := m.apply(ctx, ops)
		if err != nil {
			if readmodel.IsConflict(err) {
				return 0, err
			}
			return 0, core.Wrap(err, core.ErrCommitFailed, "mongodb commit")
		}
		return n, nil
	}

	session, err := m.client.StartSession()
	if err != nil {
		return 0, core.Wrap(err, core.ErrCommitFailed, "start mongodb session")
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return m.apply(sc, ops)
	})
	if err != nil {
		if readmodel.IsConflict(err) {
			return 0, err
		}
		return 0, core.Wrap(err, core.ErrCommitFailed, "mongodb transaction")
	}
	return result.(int), nil
}

// apply применяет операции по порядку. Без транзакции конфликт версии
// останавливает запись, но уже примененные операции остаются.
func (m *MongoStore) apply(ctx context.Context, ops []readmodel.Op) (int, error) {
	committed := 0
	for _, op := range ops {
		coll := m.db.Collection(op.Collection)
		filter := bson.M{"_id": op.ID}
		if op.Version > 0 && op.Kind != readmodel.OpInsertIfAbsent {
			filter["version"] = op.Version
		}

		switch op.Kind {
		case readmodel.OpUpsert:
			doc, err := newMongoDocument(op)
			if err != nil {
				return committed, err
			}
			update := bson.M{
				"$set": bson.M{"data": doc.Data, "index": doc.Index},
				"$inc": bson.M{"version": int64(1)},
			}
			res, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(op.Version == 0))
			if err != nil {
				return committed, fmt.Errorf("upsert %s/%s: %w", op.Collection, op.ID, err)
			}
			if op.Version > 0 && res.MatchedCount == 0 {
				return committed, readmodel.Conflict(op.Collection, op.ID)
			}
			committed++
		case readmodel.OpInsertIfAbsent:
			doc, err := newMongoDocument(op)
			if err != nil {
				return committed, err
			}
			insert := bson.M{"$setOnInsert": bson.M{"data": doc.Data, "index": doc.Index, "version": int64(1)}}
			res, err := coll.UpdateOne(ctx, filter, insert, options.Update().SetUpsert(true))
			if err != nil {
				return committed, fmt.Errorf("insert %s/%s: %w", op.Collection, op.ID, err)
			}
			if res.UpsertedCount > 0 {
				committed++
			}
		case readmodel.OpDelete:
			res, err := coll.DeleteOne(ctx, filter)
			if err != nil {
				return committed, fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
			}
			if res.DeletedCount == 0 && op.Version > 0 {
				exists, err := coll.CountDocuments(ctx, bson.M{"_id": op.ID})
				if err != nil {
					return committed, fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
				}
				if exists > 0 {
					return committed, readmodel.Conflict(op.Collection, op.ID)
				}
			}
			committed += int(res.DeletedCount)
		}
	}
	return committed, nil
}

func newMongoDocument(op readmodel.Op) (mongoDocument, error) {
	var data bson.Raw
	if err := bson.UnmarshalExtJSON(op.Data, false, &data); err != nil {
		return mongoDocument{}, fmt.Errorf("convert %s/%s to BSON: %w", op.Collection, op.ID, err)
	}
	return mongoDocument{ID: op.ID, Data: data, Index: op.Index}, nil
}

func toJSON(raw bson.Raw) ([]byte, error) {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert BSON to JSON: %w", err)
	}
	return data, nil
}
