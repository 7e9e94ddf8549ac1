package notification

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Record は通知1件の送信結果を表す。
type Record struct {
	ID        string    `bson:"_id"`
	Template  Template  `bson:"template"`
	Address   string    `bson:"address"`
	Delivered bool      `bson:"delivered"`
	Error     string    `bson:"error,omitempty"`
	SentAt    time.Time `bson:"sent_at"`
}

// Recorder は通知の送信結果を記録するインターフェース。
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// MongoRecorder はMongoDBのnotificationsコレクションに送信結果を記録する。
type MongoRecorder struct {
	col *mongo.Collection
}

// NewMongoRecorder はMongoRecorderを生成する。
func NewMongoRecorder(db *mongo.Database) *MongoRecorder {
	return &MongoRecorder{col: db.Collection("notifications")}
}

// Record は送信結果を1ドキュメントとして挿入する。
func (r *MongoRecorder) Record(ctx context.Context, rec Record) error {
	if _, err := r.col.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("mongo insert notification: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Recorder = (*MongoRecorder)(nil)
