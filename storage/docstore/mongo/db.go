package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/shule/core"
)

// Collections
const (
	studentsCol         = "students"
	feeHeadsCol         = "fee_heads"
	feeStructuresCol    = "fee_structures"
	paymentsCol         = "payments"
	receiptSequencesCol = "receipt_sequences"
	examTermsCol        = "exam_terms"
	examSchedulesCol    = "exam_schedules"
	examMarksCol        = "exam_marks"
)

// Open connects to the configured mongo server and returns the app database.
func Open(ctx context.Context, conf *core.Config) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Mongo.URI))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging mongo")
	}
	return client.Database(conf.Mongo.Database), nil
}

// EnsureIndexes creates the indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		studentsCol: {
			{
				Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "admission_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "class_id", Value: 1}}},
		},
		feeHeadsCol: {
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "name", Value: 1}}},
		},
		feeStructuresCol: {
			{
				Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "class_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		paymentsCol: {
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "student_id", Value: 1}, {Key: "payment_date", Value: 1}}},
			{
				Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "receipt_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		examSchedulesCol: {
			{
				Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "term_id", Value: 1}, {Key: "class_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		examMarksCol: {
			{
				Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "term_id", Value: 1}, {Key: "student_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for col, models := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", col)
		}
	}
	return nil
}

// trapNoDocsErr maps "no documents" to the not found error of the caller.
func trapNoDocsErr(err, notFound error, msg string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func sortAsc(fields ...string) bson.D {
	sort := make(bson.D, 0, len(fields))
	for _, f := range fields {
		sort = append(sort, bson.E{Key: f, Value: 1})
	}
	return sort
}
