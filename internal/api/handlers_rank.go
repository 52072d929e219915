// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/marquee/internal/models"
	"github.com/tomtom215/marquee/internal/ranking/online"
)

// Rank orders the request's candidates for its user.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.RankRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// A swap between these two calls reports the previous version.
	snap := h.scorer.Current()
	ranked, err := h.scorer.Rank(r.Context(), req.UserID, req.Candidates, rankContext(req.Context))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := models.RankResponse{
		UserID: req.UserID,
		Items:  make([]models.RankedItem, len(ranked)),
	}
	if snap != nil {
		resp.ModelVersion = snap.Meta.Version
	}
	for i, item := range ranked {
		resp.Items[i] = models.RankedItem{ItemID: item.ItemID, Score: item.Score, Rank: i + 1}
	}
	respondSuccess(w, r, http.StatusOK, resp, start)
}

func rankContext(rc *models.RankContext) online.Context {
	out := online.DefaultContext()
	if rc == nil {
		return out
	}
	if rc.Device != nil {
		out.Device = *rc.Device
	}
	if rc.Hour != nil {
		out.Hour = *rc.Hour
	}
	if rc.DayOfWeek != nil {
		out.DayOfWeek = *rc.DayOfWeek
	}
	if rc.SessionID != nil {
		out.SessionID = *rc.SessionID
	}
	return out
}
