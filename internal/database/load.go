// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/ranking"
)

// Sources are the CSV exports of one training run.
type Sources struct {
	UsersPath        string
	ItemsPath        string
	InteractionsPath string
}

// LoadStats reports the row counts after a load.
type LoadStats struct {
	Users        int64 `json:"users"`
	Items        int64 `json:"items"`
	Interactions int64 `json:"interactions"`
}

// LoadCSV replaces the raw tables with the contents of src in one transaction.
func (db *DB) LoadCSV(ctx context.Context, src Sources) (LoadStats, error) {
	for _, p := range []string{src.UsersPath, src.ItemsPath, src.InteractionsPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return LoadStats{}, fmt.Errorf("%w: %s", ErrSourceMissing, p)
			}
			return LoadStats{}, fmt.Errorf("stat %s: %w", p, err)
		}
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return LoadStats{}, fmt.Errorf("begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	loads := []struct {
		table string
		query string
	}{
		{tableUsers, fmt.Sprintf(`
			INSERT INTO users
			SELECT
				CAST(user_id AS VARCHAR),
				CAST(age_bucket AS VARCHAR),
				CAST(country AS VARCHAR),
				COALESCE(CAST(is_kids_profile AS INTEGER), 0) <> 0
			FROM read_csv_auto(%s, header = true)`, quoteLiteral(src.UsersPath))},
		{tableItems, fmt.Sprintf(`
			INSERT INTO items
			SELECT
				CAST(item_id AS VARCHAR),
				CAST(genre AS VARCHAR),
				CAST(maturity AS VARCHAR),
				CAST(release_year AS INTEGER),
				CAST(runtime_min AS INTEGER)
			FROM read_csv_auto(%s, header = true)`, quoteLiteral(src.ItemsPath))},
		{tableInteractions, fmt.Sprintf(`
			INSERT INTO interactions
			SELECT
				CAST(user_id AS VARCHAR),
				CAST(item_id AS VARCHAR),
				CAST(session_id AS VARCHAR),
				CAST("timestamp" AS TIMESTAMP),
				CAST(device AS VARCHAR),
				CAST(label AS INTEGER),
				COALESCE(CAST(watch_minutes AS DOUBLE), 0)
			FROM read_csv_auto(%s, header = true)`, quoteLiteral(src.InteractionsPath))},
	}

	for _, l := range loads {
		err := timed("load", l.table, func() error {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+l.table); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, l.query)
			return err
		})
		if err != nil {
			return LoadStats{}, fmt.Errorf("load %s: %w", l.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return LoadStats{}, fmt.Errorf("commit load: %w", err)
	}

	stats, err := db.Counts(ctx)
	if err != nil {
		return LoadStats{}, err
	}
	logging.Info().
		Int64("users", stats.Users).
		Int64("items", stats.Items).
		Int64("interactions", stats.Interactions).
		Msg("Raw data loaded")
	return stats, nil
}

// Counts returns the current raw table sizes.
func (db *DB) Counts(ctx context.Context) (LoadStats, error) {
	var s LoadStats
	targets := []struct {
		table string
		dst   *int64
	}{
		{tableUsers, &s.Users},
		{tableItems, &s.Items},
		{tableInteractions, &s.Interactions},
	}
	for _, t := range targets {
		if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return LoadStats{}, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return s, nil
}

// Users returns every user ordered by id.
func (db *DB) Users(ctx context.Context) ([]ranking.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []ranking.User
	err := timed("select", tableUsers, func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT user_id, COALESCE(age_bucket, ''), COALESCE(country, ''), is_kids_profile
			FROM users ORDER BY user_id`)
		if err != nil {
			return err
		}
		defer closeWithLog(rows, "rows")
		for rows.Next() {
			var u ranking.User
			if err := rows.Scan(&u.UserID, &u.AgeBucket, &u.Country, &u.IsKidsProfile); err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return out, nil
}

// Items returns every item ordered by id.
func (db *DB) Items(ctx context.Context) ([]ranking.Item, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []ranking.Item
	err := timed("select", tableItems, func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT item_id, COALESCE(genre, ''), COALESCE(maturity, ''),
				COALESCE(release_year, 0), COALESCE(runtime_min, 0)
			FROM items ORDER BY item_id`)
		if err != nil {
			return err
		}
		defer closeWithLog(rows, "rows")
		for rows.Next() {
			var it ranking.Item
			var year, runtime int32
			if err := rows.Scan(&it.ItemID, &it.Genre, &it.Maturity, &year, &runtime); err != nil {
				return err
			}
			it.ReleaseYear = int(year)
			it.RuntimeMin = int(runtime)
			out = append(out, it)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	return out, nil
}

// Events returns every interaction in file order.
func (db *DB) Events(ctx context.Context) ([]ranking.Event, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []ranking.Event
	err := timed("select", tableInteractions, func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT user_id, item_id, session_id, "timestamp", COALESCE(device, ''), label, watch_minutes
			FROM interactions ORDER BY rowid`)
		if err != nil {
			return err
		}
		defer closeWithLog(rows, "rows")
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (ranking.Event, error) {
	var e ranking.Event
	var label int32
	if err := rows.Scan(&e.UserID, &e.ItemID, &e.SessionID, &e.Timestamp, &e.Device, &label, &e.WatchMinutes); err != nil {
		return ranking.Event{}, err
	}
	e.Grade = ranking.Grade(label)
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

// InsertUsers appends users. Used when data arrives from outside CSV files.
func (db *DB) InsertUsers(ctx context.Context, users []ranking.User) error {
	return db.insertBatch(ctx, tableUsers, "INSERT INTO users VALUES (?, ?, ?, ?)", len(users), func(stmt *sql.Stmt, i int) error {
		u := users[i]
		_, err := stmt.ExecContext(ctx, u.UserID, u.AgeBucket, u.Country, u.IsKidsProfile)
		return err
	})
}

// InsertItems appends items.
func (db *DB) InsertItems(ctx context.Context, items []ranking.Item) error {
	return db.insertBatch(ctx, tableItems, "INSERT INTO items VALUES (?, ?, ?, ?, ?)", len(items), func(stmt *sql.Stmt, i int) error {
		it := items[i]
		_, err := stmt.ExecContext(ctx, it.ItemID, it.Genre, it.Maturity, it.ReleaseYear, it.RuntimeMin)
		return err
	})
}

// InsertEvents appends interactions.
func (db *DB) InsertEvents(ctx context.Context, events []ranking.Event) error {
	return db.insertBatch(ctx, tableInteractions, "INSERT INTO interactions VALUES (?, ?, ?, ?, ?, ?, ?)", len(events), func(stmt *sql.Stmt, i int) error {
		e := events[i]
		_, err := stmt.ExecContext(ctx, e.UserID, e.ItemID, e.SessionID, e.Timestamp.UTC(), e.Device, int(e.Grade), e.WatchMinutes)
		return err
	})
}

func (db *DB) insertBatch(ctx context.Context, table, query string, n int, exec func(*sql.Stmt, int) error) error {
	if n == 0 {
		return nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	err := timed("insert", table, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer closeQuietly(stmt)

		for i := 0; i < n; i++ {
			if err := exec(stmt, i); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}
