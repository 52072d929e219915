// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package services adapts server components to suture.Service.
//
//   - HTTPServerService runs an *http.Server with graceful shutdown.
//   - TrainingService runs the training pipeline on startup, on a schedule
//     and on demand, then hot-swaps the served model.
//   - ModelEventsService consumes model-published events and loads the
//     announced version into the scorer.
package services
