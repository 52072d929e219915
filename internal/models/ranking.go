// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package models

import "time"

// RankContext is the optional request context. Nil fields take the
// scorer defaults.
type RankContext struct {
	Device    *string `json:"device,omitempty" validate:"omitempty,min=1,max=64"`
	Hour      *int    `json:"hour,omitempty" validate:"omitempty,gte=0,lte=23"`
	DayOfWeek *int    `json:"day_of_week,omitempty" validate:"omitempty,gte=0,lte=6"`
	SessionID *string `json:"session_id,omitempty" validate:"omitempty,min=1,max=128"`
}

// RankRequest asks for a candidate list to be ordered for one user.
type RankRequest struct {
	UserID     string       `json:"user_id" validate:"required,max=128"`
	Candidates []string     `json:"candidates" validate:"min=1,max=1000,unique,dive,required"`
	Context    *RankContext `json:"context,omitempty"`
}

// RankedItem is one entry of a RankResponse.
type RankedItem struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

// RankResponse lists candidates by descending score.
type RankResponse struct {
	UserID       string       `json:"user_id"`
	ModelVersion int          `json:"model_version"`
	Items        []RankedItem `json:"items"`
}

// HealthResponse reports service and model readiness.
type HealthResponse struct {
	Status       string        `json:"status"`
	ModelLoaded  bool          `json:"model_loaded"`
	ModelVersion int           `json:"model_version,omitempty"`
	ModelType    string        `json:"model_type,omitempty"`
	Features     int           `json:"features"`
	TrainedAt    *time.Time    `json:"trained_at,omitempty"`
	Training     *TrainingInfo `json:"training,omitempty"`
	Uptime       string        `json:"uptime"`
}

// TrainingInfo summarizes the in-process trainer.
type TrainingInfo struct {
	InProgress  bool       `json:"in_progress"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastVersion int        `json:"last_version,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Runs        int        `json:"runs"`
}

// ModelInfo describes one registry version.
type ModelInfo struct {
	Version       int       `json:"version"`
	ModelType     string    `json:"model_type"`
	CreatedAt     time.Time `json:"created_at"`
	BestIteration int       `json:"best_iteration"`
	Features      int       `json:"features"`
	ValNDCG       float64   `json:"val_ndcg"`
	TestNDCG      float64   `json:"test_ndcg"`
	ValMAP        float64   `json:"val_map"`
	TestMAP       float64   `json:"test_map"`
	K             int       `json:"k"`
	Active        bool      `json:"active"`
}
