package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dyss/calibration"
	"dyss/squiggle"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDatabase = "dyss"
	mongoTimeout  = 10 * time.Second
)

type MongoClient struct {
	client *mongo.Client
}

type calibrationDoc struct {
	Seq         int64   `bson:"seq"`
	RefSize     int     `bson:"refsize"`
	Power       int     `bson:"power"`
	NumPacks    int     `bson:"num_packs"`
	NumScouts   int     `bson:"num_scouts"`
	Threshold   float32 `bson:"threshold"`
	Specificity float32 `bson:"specificity"`
}

type referenceDoc struct {
	Key  string `bson:"_id"`
	Data []byte `bson:"data"`
}

func NewMongoClient(uri string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %s", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("error pinging MongoDB: %s", err)
	}
	return &MongoClient{client: client}, nil
}

func (m *MongoClient) collection(name string) *mongo.Collection {
	return m.client.Database(mongoDatabase).Collection(name)
}

func (m *MongoClient) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoClient) StoreCalibration(rows []calibration.Row) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	coll := m.collection(CalibrationCollection)
	base, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("error counting calibration rows: %s", err)
	}

	docs := make([]interface{}, len(rows))
	for i, r := range rows {
		docs[i] = calibrationDoc{
			Seq:         base + int64(i),
			RefSize:     r.RefSize,
			Power:       r.Power,
			NumPacks:    r.NumPacks,
			NumScouts:   r.NumScouts,
			Threshold:   r.Threshold,
			Specificity: r.Specificity,
		}
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error inserting calibration rows: %s", err)
	}
	return nil
}

func (m *MongoClient) Lookup(k calibration.Key) (calibration.Row, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	filter := bson.M{
		"refsize":    k.RefSize,
		"power":      k.Power,
		"num_packs":  k.NumPacks,
		"num_scouts": k.NumScouts,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: 1}})

	var doc calibrationDoc
	err := m.collection(CalibrationCollection).FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return calibration.Row{}, false, nil
	}
	if err != nil {
		return calibration.Row{}, false, fmt.Errorf("error looking up calibration: %s", err)
	}
	return calibration.Row{Key: k, Threshold: doc.Threshold, Specificity: doc.Specificity}, true, nil
}

func (m *MongoClient) TotalCalibrationRows() (int, error) {
	return m.count(CalibrationCollection)
}

func (m *MongoClient) TotalReferences() (int, error) {
	return m.count(ReferenceCollection)
}

func (m *MongoClient) count(name string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	n, err := m.collection(name).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("error counting %s: %s", name, err)
	}
	return int(n), nil
}

func (m *MongoClient) GetReference(key string) (squiggle.Reference, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	var doc referenceDoc
	err := m.collection(ReferenceCollection).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return squiggle.Reference{}, false, nil
	}
	if err != nil {
		return squiggle.Reference{}, false, fmt.Errorf("error reading reference: %s", err)
	}
	ref, err := decodeReference(doc.Data)
	if err != nil {
		return squiggle.Reference{}, false, err
	}
	return ref, true, nil
}

func (m *MongoClient) StoreReference(key string, ref squiggle.Reference) error {
	data, err := encodeReference(ref)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	_, err = m.collection(ReferenceCollection).ReplaceOne(ctx,
		bson.M{"_id": key},
		referenceDoc{Key: key, Data: data},
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error storing reference: %s", err)
	}
	return nil
}

func (m *MongoClient) DeleteCollection(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	if err := m.collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("error deleting collection: %s", err)
	}
	return nil
}
