// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package cache provides an in-memory LRU with per-entry TTL. The feature
// store uses it to keep hot user and item aggregates out of BadgerDB reads.
package cache
