package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
)

const barSchema = `
CREATE TABLE IF NOT EXISTS kbar (
    symbol    TEXT    NOT NULL,
    freq      TEXT    NOT NULL,
    time_ms   INTEGER NOT NULL,
    open      REAL    NOT NULL,
    high      REAL    NOT NULL,
    low       REAL    NOT NULL,
    close     REAL    NOT NULL,
    volume    REAL    NOT NULL DEFAULT 0,
    open_interest REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (symbol, freq, time_ms)
);`

/*
SqliteStore
File-backed BarStore. One table keyed (symbol, freq, time_ms); volume is
stored per-bar.
*/
type SqliteStore struct {
	db *sql.DB
}

func NewSqliteStore(path string, write bool) (*SqliteStore, *errs.Error) {
	openFlag := "_busy_timeout=5000"
	if write {
		openFlag += "&cache=shared&mode=rwc"
	} else {
		openFlag += "&mode=ro"
	}
	connStr := fmt.Sprintf("file:%s?%s", path, openFlag)
	db, err_ := sql.Open("sqlite", connStr)
	if err_ != nil {
		return nil, errs.New(core.ErrDbConnFail, err_)
	}
	if write {
		if _, err_ = db.Exec(barSchema); err_ != nil {
			return nil, errs.New(core.ErrDbExecFail, err_)
		}
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) InsertBars(symbol, freq string, bars []*core.Bar) *errs.Error {
	tx, err_ := s.db.Begin()
	if err_ != nil {
		return errs.New(core.ErrDbExecFail, err_)
	}
	stmt, err_ := tx.Prepare(`INSERT OR REPLACE INTO kbar
		(symbol, freq, time_ms, open, high, low, close, volume, open_interest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err_ != nil {
		_ = tx.Rollback()
		return errs.New(core.ErrDbExecFail, err_)
	}
	defer stmt.Close()
	for _, bar := range bars {
		_, err_ = stmt.Exec(symbol, freq, bar.TimeMS, bar.Open, bar.High,
			bar.Low, bar.Close, bar.Volume, bar.OpenInterest)
		if err_ != nil {
			_ = tx.Rollback()
			return errs.New(core.ErrDbExecFail, err_)
		}
	}
	if err_ = tx.Commit(); err_ != nil {
		return errs.New(core.ErrDbExecFail, err_)
	}
	return nil
}

func (s *SqliteStore) LoadBars(symbol, freq string, startMS, endMS int64) ([]*core.Bar, *errs.Error) {
	query := `SELECT time_ms, open, high, low, close, volume, open_interest
		FROM kbar WHERE symbol = ? AND freq = ? AND time_ms >= ?`
	args := []interface{}{symbol, freq, startMS}
	if endMS > 0 {
		query += " AND time_ms < ?"
		args = append(args, endMS)
	}
	query += " ORDER BY time_ms"
	rows, err_ := s.db.Query(query, args...)
	if err_ != nil {
		return nil, errs.New(core.ErrDbReadFail, err_)
	}
	defer rows.Close()
	var res []*core.Bar
	for rows.Next() {
		bar := &core.Bar{Symbol: symbol}
		err_ = rows.Scan(&bar.TimeMS, &bar.Open, &bar.High, &bar.Low,
			&bar.Close, &bar.Volume, &bar.OpenInterest)
		if err_ != nil {
			return nil, errs.New(core.ErrDbReadFail, err_)
		}
		res = append(res, bar)
	}
	if err_ = rows.Err(); err_ != nil {
		return nil, errs.New(core.ErrDbReadFail, err_)
	}
	return res, nil
}

func (s *SqliteStore) Range(symbol, freq string) (int64, int64, bool, *errs.Error) {
	var first, last sql.NullInt64
	row := s.db.QueryRow(`SELECT MIN(time_ms), MAX(time_ms) FROM kbar
		WHERE symbol = ? AND freq = ?`, symbol, freq)
	if err_ := row.Scan(&first, &last); err_ != nil {
		return 0, 0, false, errs.New(core.ErrDbReadFail, err_)
	}
	if !first.Valid {
		return 0, 0, false, nil
	}
	return first.Int64, last.Int64, true, nil
}
