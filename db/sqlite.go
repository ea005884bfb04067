package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"dyss/calibration"
	"dyss/squiggle"
	"dyss/utils"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient opens (creating if needed) the database at dataSourceName.
func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	if dir := filepath.Dir(dataSourceName); dir != "." && !strings.HasPrefix(dataSourceName, "file:") && dataSourceName != ":memory:" {
		if err := utils.CreateFolder(dir); err != nil {
			return nil, fmt.Errorf("error creating database folder: %s", err)
		}
	}
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %s", err)
	}
	// one writer keeps imports from tripping over "database is locked"
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %s", err)
	}
	return &SQLiteClient{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS calibration (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			refsize INTEGER NOT NULL,
			power INTEGER NOT NULL,
			num_packs INTEGER NOT NULL,
			num_scouts INTEGER NOT NULL,
			threshold REAL NOT NULL,
			specificity REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_calibration_key
			ON calibration (refsize, power, num_packs, num_scouts);
		CREATE TABLE IF NOT EXISTS refs (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL
		);`)
	return err
}

func (s *SQLiteClient) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreCalibration appends rows in order; lookups keep returning the
// earliest stored row for a key.
func (s *SQLiteClient) StoreCalibration(rows []calibration.Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %s", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO calibration
		(refsize, power, num_packs, num_scouts, threshold, specificity)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %s", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.RefSize, r.Power, r.NumPacks, r.NumScouts, r.Threshold, r.Specificity); err != nil {
			tx.Rollback()
			return fmt.Errorf("error inserting calibration row: %s", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteClient) Lookup(k calibration.Key) (calibration.Row, bool, error) {
	row := calibration.Row{Key: k}
	err := s.db.QueryRow(`SELECT threshold, specificity FROM calibration
		WHERE refsize = ? AND power = ? AND num_packs = ? AND num_scouts = ?
		ORDER BY id LIMIT 1`,
		k.RefSize, k.Power, k.NumPacks, k.NumScouts).Scan(&row.Threshold, &row.Specificity)
	if errors.Is(err, sql.ErrNoRows) {
		return calibration.Row{}, false, nil
	}
	if err != nil {
		return calibration.Row{}, false, fmt.Errorf("error looking up calibration: %s", err)
	}
	return row, true, nil
}

func (s *SQLiteClient) TotalCalibrationRows() (int, error) {
	return s.count("calibration")
}

func (s *SQLiteClient) TotalReferences() (int, error) {
	return s.count("refs")
}

func (s *SQLiteClient) count(table string) (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting %s: %s", table, err)
	}
	return n, nil
}

func (s *SQLiteClient) GetReference(key string) (squiggle.Reference, bool, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM refs WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return squiggle.Reference{}, false, nil
	}
	if err != nil {
		return squiggle.Reference{}, false, fmt.Errorf("error reading reference: %s", err)
	}
	ref, err := decodeReference(data)
	if err != nil {
		return squiggle.Reference{}, false, err
	}
	return ref, true, nil
}

func (s *SQLiteClient) StoreReference(key string, ref squiggle.Reference) error {
	data, err := encodeReference(ref)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec("INSERT OR REPLACE INTO refs (key, data) VALUES (?, ?)", key, data); err != nil {
		return fmt.Errorf("error storing reference: %s", err)
	}
	return nil
}

// DeleteCollection empties one of CalibrationCollection or
// ReferenceCollection.
func (s *SQLiteClient) DeleteCollection(name string) error {
	var table string
	switch name {
	case CalibrationCollection:
		table = "calibration"
	case ReferenceCollection:
		table = "refs"
	default:
		return fmt.Errorf("unknown collection: %s", name)
	}
	if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
		return fmt.Errorf("error deleting %s: %s", name, err)
	}
	return nil
}
