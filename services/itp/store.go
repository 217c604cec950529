package itp

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"raritp-backend/lib/timezone"
)

var ErrNoRecord = errors.New("no record stored for this vin")

// Store keeps the last record per VIN.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

func (s Store) Upsert(ctx context.Context, record Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO itp_record (vin, status, expiration_date, last_checked)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (vin) DO UPDATE SET
			status = excluded.status,
			expiration_date = excluded.expiration_date,
			last_checked = excluded.last_checked`,
		record.VIN,
		record.Status,
		record.ExpirationDate,
		record.LastChecked.Unix(),
	)
	return err
}

func (s Store) Get(ctx context.Context, vin string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT vin, status, expiration_date, last_checked
		FROM itp_record WHERE vin = ?`,
		vin,
	)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNoRecord
	}
	return record, err
}

func (s Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vin, status, expiration_date, last_checked
		FROM itp_record ORDER BY vin`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (Record, error) {
	var record Record
	var lastChecked int64
	err := row.Scan(&record.VIN, &record.Status, &record.ExpirationDate, &lastChecked)
	if err != nil {
		return Record{}, err
	}
	record.LastChecked = time.Unix(lastChecked, 0).In(timezone.Location)
	return record, nil
}
