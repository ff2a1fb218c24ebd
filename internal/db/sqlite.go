package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteDB keeps every storage key as one row of a single table.
type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; sqlite serializes writes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	createKVTableSQL := `CREATE TABLE IF NOT EXISTS kv (
		"key" TEXT NOT NULL PRIMARY KEY,
		"value" BLOB NOT NULL
	  );`

	statement, err := db.Prepare(createKVTableSQL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	defer statement.Close()
	_, err = statement.Exec()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	logrus.WithField("path", path).Debug("kv table ready")
	return &SQLiteDB{
		db: db,
	}, nil
}

func (s *SQLiteDB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteDB) Set(ctx context.Context, key string, value []byte) error {
	upsertSQL := `INSERT INTO kv(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	statement, err := s.db.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()
	_, err = statement.ExecContext(ctx, key, value)
	if err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}

	return nil
}

func (s *SQLiteDB) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
