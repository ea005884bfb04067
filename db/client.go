// Package db persists calibration tables and synthesized references.
// SQLite is the default backend; MongoDB is selected with
// DYSS_DB_TYPE=mongo.
package db

import (
	"fmt"

	"dyss/calibration"
	"dyss/squiggle"
	"dyss/utils"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	CalibrationCollection = "calibration"
	ReferenceCollection   = "references"
)

// DBClient is implemented by every backend. it satisfies both
// calibration.Source and squiggle.Cache.
type DBClient interface {
	Close() error
	StoreCalibration(rows []calibration.Row) error
	Lookup(k calibration.Key) (calibration.Row, bool, error)
	TotalCalibrationRows() (int, error)
	GetReference(key string) (squiggle.Reference, bool, error)
	StoreReference(key string, ref squiggle.Reference) error
	TotalReferences() (int, error)
	DeleteCollection(name string) error
}

// NewDBClient opens the backend chosen by the environment.
func NewDBClient() (DBClient, error) {
	switch dbType := utils.GetEnv("DYSS_DB_TYPE", "sqlite"); dbType {
	case "mongo":
		return NewMongoClient(utils.GetEnv("DYSS_MONGO_URI", "mongodb://localhost:27017"))
	case "sqlite":
		return NewSQLiteClient(utils.GetEnv("DYSS_SQLITE_PATH", "dyss.sqlite3"))
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

func encodeReference(ref squiggle.Reference) ([]byte, error) {
	data, err := msgpack.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("encoding reference: %v", err)
	}
	return data, nil
}

func decodeReference(data []byte) (squiggle.Reference, error) {
	var ref squiggle.Reference
	if err := msgpack.Unmarshal(data, &ref); err != nil {
		return squiggle.Reference{}, fmt.Errorf("decoding reference: %v", err)
	}
	return ref, nil
}
