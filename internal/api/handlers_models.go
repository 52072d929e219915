// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/ranking/registry"
)

func (h *Handler) activeVersion() int {
	if snap := h.scorer.Current(); snap != nil {
		return snap.Meta.Version
	}
	return 0
}

func toModelInfo(meta *registry.Metadata, active int) models.ModelInfo {
	return models.ModelInfo{
		Version:       meta.Version,
		ModelType:     meta.ModelType,
		CreatedAt:     meta.CreatedAt,
		BestIteration: meta.BestIteration,
		Features:      len(meta.Features),
		ValNDCG:       meta.Metrics.Val.NDCG,
		TestNDCG:      meta.Metrics.Test.NDCG,
		ValMAP:        meta.Metrics.Val.MAP,
		TestMAP:       meta.Metrics.Test.MAP,
		K:             meta.Metrics.K,
		Active:        meta.Version == active,
	}
}

// ListModels returns every registry version, oldest first.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.registry == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "model registry is not configured", nil)
		return
	}
	if err := h.registry.Refresh(); err != nil {
		respondDomainError(w, r, err)
		return
	}

	metas, err := h.registry.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	active := h.activeVersion()
	out := make([]models.ModelInfo, len(metas))
	for i := range metas {
		out[i] = toModelInfo(&metas[i], active)
	}
	respondSuccess(w, r, http.StatusOK, out, start)
}

// GetModel returns one version's summary.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.registry == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "model registry is not configured", nil)
		return
	}
	version, err := versionParam(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	if err := h.registry.Refresh(); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if version == 0 {
		latest, ok := h.registry.Latest()
		if !ok {
			respondError(w, r, http.StatusNotFound, CodeModelNotFound, "registry is empty", nil)
			return
		}
		version = latest
	}

	meta, err := h.registry.Meta(version)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, toModelInfo(&meta, h.activeVersion()), start)
}

// ActivateModel loads a version and serves it. This is the rollback path.
func (h *Handler) ActivateModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.registry == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "model registry is not configured", nil)
		return
	}
	version, err := versionParam(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	if err := h.registry.Refresh(); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := h.scorer.LoadVersion(r.Context(), h.registry, version); err != nil {
		respondDomainError(w, r, err)
		return
	}

	meta := h.scorer.Current().Meta
	respondSuccess(w, r, http.StatusOK, toModelInfo(&meta, meta.Version), start)
}

// TriggerTraining queues a training run and answers 202.
func (h *Handler) TriggerTraining(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.trainer == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "training is not enabled on this server", nil)
		return
	}
	if err := h.trainer.Trigger(); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusAccepted, map[string]string{"status": "accepted"}, start)
}

// TrainingStatus reports the in-process trainer.
func (h *Handler) TrainingStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.trainer == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "training is not enabled on this server", nil)
		return
	}
	respondSuccess(w, r, http.StatusOK, h.trainer.Status(), start)
}
