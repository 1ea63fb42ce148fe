// Package storage keeps a local sqlite mirror of retrieval outcomes so
// operators can answer "when did we last pull logs for this store" without
// scraping stderr.
package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	logagent "github.com/httprunner/LogAgent"
)

const (
	defaultDBDirName  = ".logagent"
	defaultDBFileName = "history.db"
	historyTable      = "retrieval_history"
)

// HistoryStore records per-kind retrieval outcomes keyed by
// (device, date, log_type); reruns overwrite the previous row.
type HistoryStore struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// ResolveDatabasePath returns the history database path, creating the parent
// directory. customPath may be empty to use ~/.logagent/history.db.
func ResolveDatabasePath(customPath string) (string, error) {
	if customPath != "" {
		if err := os.MkdirAll(filepath.Dir(customPath), 0o755); err != nil {
			return "", errors.Wrapf(err, "create history dir for %s", customPath)
		}
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locate user home")
	}
	dir := filepath.Join(home, defaultDBDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create history dir %s", dir)
	}
	return filepath.Join(dir, defaultDBFileName), nil
}

// OpenHistoryStore opens (and if needed creates) the history database.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open history database %s", path)
	}
	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	stmt, err := prepareUpsert(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &HistoryStore{db: db, stmt: stmt}, nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "execute sqlite pragma %s failed", stmt)
		}
	}
	db.SetMaxOpenConns(1)
	return nil
}

func ensureSchema(db *sql.DB) error {
	create := `CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		Device TEXT NOT NULL,
		LogDate TEXT NOT NULL,
		LogType TEXT NOT NULL,
		Status TEXT NOT NULL,
		Message TEXT,
		FileName TEXT,
		FileSize INTEGER,
		LocalPath TEXT,
		ExtractedDir TEXT,
		RecordedAt INTEGER NOT NULL,
		UNIQUE(Device, LogDate, LogType)
	)`
	if _, err := db.Exec(create); err != nil {
		return errors.Wrap(err, "create history table")
	}
	return nil
}

func prepareUpsert(db *sql.DB) (*sql.Stmt, error) {
	upsert := `INSERT INTO ` + historyTable + `
		(Device, LogDate, LogType, Status, Message, FileName, FileSize, LocalPath, ExtractedDir, RecordedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(Device, LogDate, LogType) DO UPDATE SET
		Status=excluded.Status, Message=excluded.Message,
		FileName=excluded.FileName, FileSize=excluded.FileSize,
		LocalPath=excluded.LocalPath, ExtractedDir=excluded.ExtractedDir,
		RecordedAt=excluded.RecordedAt`
	stmt, err := db.Prepare(upsert)
	if err != nil {
		return nil, errors.Wrap(err, "prepare history upsert")
	}
	return stmt, nil
}

// RecordBatch mirrors a finished download batch. Implements
// logagent.HistoryRecorder.
func (s *HistoryStore) RecordBatch(ctx context.Context, device, date string, results []logagent.RetrievalResult) error {
	if s == nil || len(results) == 0 {
		return nil
	}
	now := time.Now().Unix()
	for _, result := range results {
		_, err := s.stmt.ExecContext(ctx,
			device, date, result.LogType, string(result.Status), result.Message,
			result.FileName, result.FileSize, result.LocalPath, result.ExtractedDir, now)
		if err != nil {
			return errors.Wrapf(err, "upsert history for %s/%s/%s", device, date, result.LogType)
		}
	}
	return nil
}

// PruneOlderThan drops rows recorded before the retention window and
// returns how many were removed.
func (s *HistoryStore) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM `+historyTable+` WHERE RecordedAt < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "prune history")
	}
	removed, _ := result.RowsAffected()
	if removed > 0 {
		log.Debug().Int64("rows", removed).Msg("pruned retrieval history")
	}
	return removed, nil
}

// HistoryRow is one mirrored outcome, newest first from RecentForDevice.
type HistoryRow struct {
	Device       string
	LogDate      string
	LogType      string
	Status       string
	Message      string
	FileName     string
	FileSize     int64
	LocalPath    string
	ExtractedDir string
	RecordedAt   int64
}

// RecentForDevice returns up to limit rows for a device, newest first.
func (s *HistoryStore) RecentForDevice(ctx context.Context, device string, limit int) ([]HistoryRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT Device, LogDate, LogType, Status,
		IFNULL(Message,''), IFNULL(FileName,''), IFNULL(FileSize,0),
		IFNULL(LocalPath,''), IFNULL(ExtractedDir,''), RecordedAt
		FROM `+historyTable+` WHERE Device = ? ORDER BY RecordedAt DESC, id DESC LIMIT ?`,
		device, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()
	var out []HistoryRow
	for rows.Next() {
		var row HistoryRow
		if err := rows.Scan(&row.Device, &row.LogDate, &row.LogType, &row.Status,
			&row.Message, &row.FileName, &row.FileSize,
			&row.LocalPath, &row.ExtractedDir, &row.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "scan history row")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close releases the prepared statement and database handle.
func (s *HistoryStore) Close() error {
	if s == nil {
		return nil
	}
	if s.stmt != nil {
		_ = s.stmt.Close()
	}
	return s.db.Close()
}
