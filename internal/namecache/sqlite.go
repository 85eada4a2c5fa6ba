package namecache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/brightsync/internal/infrastructure/database"
)

// SQLiteStore keeps the name table in the known_monitors table.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore creates a store over an open, migrated database.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT device_instance_id, name, last_write_time FROM known_monitors ORDER BY device_instance_id",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying known_monitors: %w", ErrStoreFailed, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var written string
		if err := rows.Scan(&r.DeviceInstanceID, &r.Name, &written); err != nil {
			return nil, fmt.Errorf("%w: scanning known_monitors row: %w", ErrStoreFailed, err)
		}
		r.LastWriteTime, err = time.Parse(time.RFC3339Nano, written)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing last_write_time of %s: %w", ErrStoreFailed, r.DeviceInstanceID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating known_monitors: %w", ErrStoreFailed, err)
	}
	return records, nil
}

// Save implements Store. The table is replaced in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, records []Record) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM known_monitors"); err != nil {
			return fmt.Errorf("clearing known_monitors: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO known_monitors (device_instance_id, name, last_write_time) VALUES (?, ?, ?)",
		)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if r.DeviceInstanceID == "" {
				return fmt.Errorf("%w: empty device instance id", ErrInvalidRecord)
			}
			if _, err := stmt.ExecContext(ctx,
				r.DeviceInstanceID,
				r.Name,
				r.LastWriteTime.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("inserting %s: %w", r.DeviceInstanceID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	return nil
}
