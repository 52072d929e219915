// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/marquee/internal/models"
)

// Health reports service status and the served model. It always answers
// 200; status is "degraded" while no model is loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := models.HealthResponse{
		Status: "healthy",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	}

	if snap := h.scorer.Current(); snap != nil {
		resp.ModelLoaded = true
		resp.ModelVersion = snap.Meta.Version
		resp.ModelType = snap.Meta.ModelType
		resp.Features = snap.Encoder.Width()
		if !snap.Meta.CreatedAt.IsZero() {
			created := snap.Meta.CreatedAt
			resp.TrainedAt = &created
		}
	} else {
		resp.Status = "degraded"
	}

	if h.trainer != nil {
		st := h.trainer.Status()
		info := &models.TrainingInfo{
			InProgress:  st.InProgress,
			LastVersion: st.LastVersion,
			LastError:   st.LastError,
			Runs:        st.Runs,
		}
		if !st.LastRunAt.IsZero() {
			at := st.LastRunAt
			info.LastRunAt = &at
		}
		resp.Training = info
	}

	respondSuccess(w, r, http.StatusOK, resp, start)
}

// HealthLive answers 200 while the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady answers 503 until a model is served.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.scorer.Current() == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeModelNotReady, "no model is loaded", nil)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]string{"status": "ready"}, time.Now())
}
