// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package events carries model-published notifications from the training
// pipeline to online scorers over Watermill.
//
// The default backend is an in-process GoChannel, which is enough when the
// trainer and the HTTP server share a process. Building with -tags=nats
// enables a NATS backend so that separate trainer and server processes can
// coordinate model hot-swaps.
//
// Publishing goes through a circuit breaker. A failed publish never fails a
// training run: the model is already persisted in the registry and scorers
// pick it up on their next reload.
package events
