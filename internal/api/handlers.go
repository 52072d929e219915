// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"time"

	"github.com/tomtom215/marquee/internal/ranking/online"
	"github.com/tomtom215/marquee/internal/ranking/pipeline"
	"github.com/tomtom215/marquee/internal/ranking/registry"
)

// TrainingTrigger starts training runs outside the request lifetime.
type TrainingTrigger interface {
	// Trigger requests a run and returns pipeline.ErrTrainingInProgress when
	// one is already running or queued.
	Trigger() error
	Status() pipeline.Status
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	scorer    *online.Scorer
	registry  *registry.Registry
	trainer   TrainingTrigger
	startTime time.Time
}

// NewHandler creates the handler set. registry and trainer may be nil,
// which disables the model and training endpoints.
func NewHandler(scorer *online.Scorer, reg *registry.Registry, trainer TrainingTrigger) *Handler {
	return &Handler{
		scorer:    scorer,
		registry:  reg,
		trainer:   trainer,
		startTime: time.Now(),
	}
}
