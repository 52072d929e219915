// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package database is the DuckDB data layer of the training pipeline.

Raw CSV exports are loaded with read_csv_auto into three typed tables:

  - users(user_id, age_bucket, country, is_kids_profile)
  - items(item_id, genre, maturity, release_year, runtime_min)
  - interactions(user_id, item_id, session_id, timestamp, device, label, watch_minutes)

The tables are read back as ranking.User, ranking.Item and ranking.Event
values. After a split, candidate rows can be written to Parquet with
COPY ... TO for offline inspection.

DuckDB is embedded through the CGO-based driver
(github.com/duckdb/duckdb-go/v2). An empty path runs fully in memory.
*/
package database
