// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/ranking"
)

const exportTable = "temp_export_rows"

// ExportParquet writes candidate rows to a ZSTD-compressed Parquet file.
// The temp table lives on one pinned connection because DuckDB temp tables
// are connection scoped.
func (db *DB) ExportParquet(ctx context.Context, path string, rows []ranking.CandidateRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer closeQuietly(conn)

	create := `CREATE OR REPLACE TEMPORARY TABLE ` + exportTable + ` (
		user_id VARCHAR, session_id VARCHAR, item_id VARCHAR,
		"timestamp" TIMESTAMP, device VARCHAR, label INTEGER,
		watch_minutes DOUBLE, is_negative BOOLEAN,
		age_bucket VARCHAR, country VARCHAR, is_kids_profile BOOLEAN,
		genre VARCHAR, maturity VARCHAR, release_year INTEGER, runtime_min INTEGER,
		hour INTEGER, day_of_week INTEGER, is_prime_time BOOLEAN, is_weekend BOOLEAN,
		item_age INTEGER, is_kids_content BOOLEAN, kids_mismatch BOOLEAN,
		u_watch_mins DOUBLE, u_plays DOUBLE, u_clicks DOUBLE, u_play_rate DOUBLE,
		i_watch_mins DOUBLE, i_plays DOUBLE, i_clicks DOUBLE, i_play_rate DOUBLE
	)`
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create temporary export table: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+exportTable); err != nil {
			logging.Warn().Err(err).Msg("Failed to drop temporary export table")
		}
	}()

	err = timed("insert", exportTable, func() error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+exportTable+` VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer closeQuietly(stmt)

		for i := range rows {
			r := &rows[i]
			if _, err := stmt.ExecContext(ctx,
				r.UserID, r.SessionID, r.ItemID,
				r.Timestamp.UTC(), r.Device, int(r.Grade),
				r.WatchMinutes, r.IsNegative,
				r.User.AgeBucket, r.User.Country, r.User.IsKidsProfile,
				r.Item.Genre, r.Item.Maturity, r.Item.ReleaseYear, r.Item.RuntimeMin,
				r.Ctx.Hour, r.Ctx.DayOfWeek, r.Ctx.IsPrimeTime, r.Ctx.IsWeekend,
				r.Cross.ItemAge, r.Cross.IsKidsContent, r.Cross.KidsMismatch,
				r.UserAgg.WatchMinutes, r.UserAgg.Plays, r.UserAgg.Clicks, r.UserAgg.PlayRate,
				r.ItemAgg.WatchMinutes, r.ItemAgg.Plays, r.ItemAgg.Clicks, r.ItemAgg.PlayRate,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("stage export rows: %w", err)
	}

	copyQuery := fmt.Sprintf(`COPY %s TO %s (FORMAT PARQUET, COMPRESSION 'ZSTD')`, exportTable, quoteLiteral(path))
	err = timed("export", exportTable, func() error {
		_, err := conn.ExecContext(ctx, copyQuery)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to export parquet: %w", err)
	}

	logging.Debug().Str("path", path).Int("rows", len(rows)).Msg("Exported parquet")
	return nil
}

// CountParquet returns the number of rows in a Parquet file.
func (db *DB) CountParquet(ctx context.Context, path string) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM read_parquet(%s)", quoteLiteral(path))
	if err := db.conn.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count parquet: %w", err)
	}
	return n, nil
}
