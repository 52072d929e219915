// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package ranking

import (
	"time"

	"github.com/tomtom215/marquee/internal/ranking/features"
)

// Grade is the ordinal relevance label of an interaction.
type Grade int

const (
	// GradeNone is no engagement. Sampled negatives carry this grade.
	GradeNone Grade = iota
	// GradeClick is a click without meaningful playback.
	GradeClick
	// GradeShortPlay is a short play.
	GradeShortPlay
	// GradeLongPlay is a long play.
	GradeLongPlay
)

// LabelDefinition documents the grade scale in model metadata.
const LabelDefinition = "0=no-engagement negative, 1=click, 2=short-play, 3=long-play"

// Event is one raw engagement event.
type Event struct {
	UserID       string    `json:"user_id"`
	ItemID       string    `json:"item_id"`
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	Device       string    `json:"device"`
	Grade        Grade     `json:"label"`
	WatchMinutes float64   `json:"watch_minutes"`
}

// User is a static user attribute row.
type User struct {
	UserID        string `json:"user_id"`
	AgeBucket     string `json:"age_bucket"`
	Country       string `json:"country"`
	IsKidsProfile bool   `json:"is_kids_profile"`
}

// Item is a static item attribute row.
type Item struct {
	ItemID      string `json:"item_id"`
	Genre       string `json:"genre"`
	Maturity    string `json:"maturity"`
	ReleaseYear int    `json:"release_year"`
	RuntimeMin  int    `json:"runtime_min"`
}

// GroupKey identifies a ranking group.
type GroupKey struct {
	UserID    string
	SessionID string
}

// Aggregates are windowed engagement counters for one user or one item.
type Aggregates struct {
	WatchMinutes float64 `json:"watch_minutes"`
	Plays        float64 `json:"plays"`
	Clicks       float64 `json:"clicks"`
	PlayRate     float64 `json:"play_rate"`
}

// ContextFeatures are request-time features derived from the event time.
type ContextFeatures struct {
	Hour        int
	DayOfWeek   int
	IsPrimeTime bool
	IsWeekend   bool
}

// CrossFeatures combine user and item attributes.
type CrossFeatures struct {
	ItemAge       int
	IsKidsContent bool
	KidsMismatch  bool
}

// CandidateRow is one (user, session, item) row of the ranking dataset.
type CandidateRow struct {
	UserID       string
	SessionID    string
	ItemID       string
	Timestamp    time.Time
	Device       string
	Grade        Grade
	WatchMinutes float64
	IsNegative   bool

	User  User
	Item  Item
	Ctx   ContextFeatures
	Cross CrossFeatures

	UserAgg Aggregates
	ItemAgg Aggregates
}

// Group returns the row's group key.
func (r *CandidateRow) Group() GroupKey {
	return GroupKey{UserID: r.UserID, SessionID: r.SessionID}
}

// Categorical feature fields in encoding order.
const (
	FieldUserID    = "user_id"
	FieldSessionID = "session_id"
	FieldItemID    = "item_id"
	FieldAgeBucket = "age_bucket"
	FieldCountry   = "country"
	FieldGenre     = "genre"
	FieldMaturity  = "maturity"
	FieldDevice    = "device"
)

var categoricalFields = []string{
	FieldUserID, FieldSessionID, FieldItemID, FieldAgeBucket,
	FieldCountry, FieldGenre, FieldMaturity, FieldDevice,
}

// numericFields follow the column order of the joined dataset. Timestamp,
// watch minutes and the negative flag are not features: they are unknown,
// or constant, at serve time.
var numericFields = []string{
	"is_kids_profile", "release_year", "runtime_min",
	"u_watch_mins", "u_plays", "u_clicks", "u_play_rate",
	"i_watch_mins", "i_plays", "i_clicks", "i_play_rate",
	"hour", "day_of_week", "is_prime_time", "is_weekend",
	"item_age", "is_kids_content", "kids_mismatch",
}

// FeatureFields returns the field set the encoder is fit with.
func FeatureFields() features.FieldSet {
	return features.FieldSet{
		Categorical: append([]string(nil), categoricalFields...),
		Numeric:     append([]string(nil), numericFields...),
	}
}

// Record converts the row into encoder input. Offline encoding and online
// scoring both go through this method.
func (r *CandidateRow) Record() features.Record {
	return features.Record{
		Categorical: map[string]string{
			FieldUserID:    r.UserID,
			FieldSessionID: r.SessionID,
			FieldItemID:    r.ItemID,
			FieldAgeBucket: r.User.AgeBucket,
			FieldCountry:   r.User.Country,
			FieldGenre:     r.Item.Genre,
			FieldMaturity:  r.Item.Maturity,
			FieldDevice:    r.Device,
		},
		Numeric: map[string]float64{
			"is_kids_profile": boolFloat(r.User.IsKidsProfile),
			"release_year":    float64(r.Item.ReleaseYear),
			"runtime_min":     float64(r.Item.RuntimeMin),
			"u_watch_mins":    r.UserAgg.WatchMinutes,
			"u_plays":         r.UserAgg.Plays,
			"u_clicks":        r.UserAgg.Clicks,
			"u_play_rate":     r.UserAgg.PlayRate,
			"i_watch_mins":    r.ItemAgg.WatchMinutes,
			"i_plays":         r.ItemAgg.Plays,
			"i_clicks":        r.ItemAgg.Clicks,
			"i_play_rate":     r.ItemAgg.PlayRate,
			"hour":            float64(r.Ctx.Hour),
			"day_of_week":     float64(r.Ctx.DayOfWeek),
			"is_prime_time":   boolFloat(r.Ctx.IsPrimeTime),
			"is_weekend":      boolFloat(r.Ctx.IsWeekend),
			"item_age":        float64(r.Cross.ItemAge),
			"is_kids_content": boolFloat(r.Cross.IsKidsContent),
			"kids_mismatch":   boolFloat(r.Cross.KidsMismatch),
		},
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
