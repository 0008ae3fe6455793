package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"rpanamer/internal"
	"rpanamer/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS batches (
  id TEXT PRIMARY KEY,
  origin TEXT NOT NULL,
  sourceRef TEXT,
  prefix TEXT NOT NULL,
  total INTEGER NOT NULL,
  succeeded INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  outputRef TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  batchId TEXT NOT NULL,
  position INTEGER NOT NULL,
  originalName TEXT NOT NULL,
  synthesizedName TEXT NOT NULL,
  status TEXT NOT NULL,
  rawText TEXT,
  code TEXT,
  name TEXT,
  value TEXT,
  valueAmount REAL,
  idNumber TEXT,
  ocrMethod TEXT,
  ocrConfidence REAL,
  ocrFailure TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(batchId, position),
  UNIQUE(batchId, synthesizedName),
  FOREIGN KEY(batchId) REFERENCES batches(id)
);
CREATE INDEX IF NOT EXISTS idx_records_idNumber ON records(idNumber);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  batchId TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  batchId TEXT,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SaveBatch stores a finished batch and its records in one transaction.
func (d *DB) SaveBatch(batch internal.BatchRow, records []internal.FileRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
INSERT INTO batches (id, origin, sourceRef, prefix, total, succeeded, failed, outputRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, batch.ID, batch.Origin, batch.SourceRef, batch.Prefix, batch.Total, batch.Succeeded, batch.Failed, nullable(batch.OutputRef)); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO records (
  batchId, position, originalName, synthesizedName, status, rawText,
  code, name, value, valueAmount, idNumber, ocrMethod, ocrConfidence, ocrFailure
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		var code, name, value, idNumber, ocrMethod, ocrFailure *string
		var amount, confidence *float64
		if r.Fields != nil {
			code, name, value, idNumber = &r.Fields.Code, &r.Fields.Name, &r.Fields.Value, &r.Fields.ID
			if v, ok := util.ParseAmount(r.Fields.Value); ok {
				amount = util.FloatPtr(v)
			}
		}
		if r.OCR != nil {
			ocrMethod = nullable(r.OCR.Method)
			ocrFailure = nullable(r.OCR.Failure)
			if r.OCR.Failure == "" {
				confidence = util.FloatPtr(r.OCR.Confidence)
			}
		}
		if _, err := stmt.Exec(
			batch.ID, r.Position, r.OriginalName, r.SynthesizedName, string(r.Status), r.RawText,
			code, name, value, amount, idNumber, ocrMethod, confidence, ocrFailure,
		); err != nil {
			return fmt.Errorf("insert record %q: %w", r.OriginalName, err)
		}
	}

	return tx.Commit()
}

func (d *DB) SetBatchOutput(batchID, outputRef string) error {
	_, err := d.conn.Exec(`UPDATE batches SET outputRef = ? WHERE id = ?`, outputRef, batchID)
	return err
}

func (d *DB) GetBatch(batchID string) (*internal.BatchRow, error) {
	var row internal.BatchRow
	var sourceRef, outputRef sql.NullString
	err := d.conn.QueryRow(`
SELECT id, origin, sourceRef, prefix, total, succeeded, failed, outputRef, createdAt
FROM batches WHERE id = ?
`, batchID).Scan(&row.ID, &row.Origin, &sourceRef, &row.Prefix, &row.Total, &row.Succeeded, &row.Failed, &outputRef, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.SourceRef = sourceRef.String
	row.OutputRef = outputRef.String
	return &row, nil
}

func (d *DB) ListBatches(limit int) ([]internal.BatchRow, error) {
	rows, err := d.conn.Query(`
SELECT id, origin, sourceRef, prefix, total, succeeded, failed, outputRef, createdAt
FROM batches ORDER BY createdAt DESC, rowid DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.BatchRow
	for rows.Next() {
		var row internal.BatchRow
		var sourceRef, outputRef sql.NullString
		if err := rows.Scan(&row.ID, &row.Origin, &sourceRef, &row.Prefix, &row.Total, &row.Succeeded, &row.Failed, &outputRef, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.SourceRef = sourceRef.String
		row.OutputRef = outputRef.String
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) GetExportRows(batchID string) ([]internal.RecordExportRow, error) {
	rows, err := d.conn.Query(`
SELECT position, originalName, synthesizedName, status,
       code, name, value, valueAmount, idNumber,
       ocrMethod, ocrConfidence, ocrFailure
FROM records
WHERE batchId = ?
ORDER BY position ASC
`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RecordExportRow
	for rows.Next() {
		var row internal.RecordExportRow
		if err := rows.Scan(
			&row.Position,
			&row.OriginalName,
			&row.SynthesizedName,
			&row.Status,
			&row.Code,
			&row.Name,
			&row.Value,
			&row.ValueAmount,
			&row.IDNumber,
			&row.OCRMethod,
			&row.OCRConfidence,
			&row.OCRFailure,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(scan func(dest ...any) error) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) MarkEmailProcessed(emailID int, batchID string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = 'processed', batchId = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, batchID, emailID)
	return err
}

// EmailBatchID returns the batch produced from an email, or "" when none.
func (d *DB) EmailBatchID(emailID int) (string, error) {
	var batchID sql.NullString
	err := d.conn.QueryRow(`SELECT batchId FROM emails WHERE id = ?`, emailID).Scan(&batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return batchID.String, err
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) InsertRun(traceID, batchID string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, batchId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, nullable(batchID), string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
