// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package models defines the JSON shapes of the HTTP API.
//
// Every endpoint answers with an APIResponse envelope:
//
//	{
//	  "status": "success",
//	  "data": {...},
//	  "metadata": {"timestamp": "2026-01-02T15:04:05Z", "query_time_ms": 3}
//	}
//
// Errors set status to "error" and fill the error object with a stable
// code such as USER_NOT_FOUND or MODEL_NOT_READY.
package models
