// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package dataset

import (
	"time"

	"github.com/tomtom215/marquee/internal/ranking"
)

// AggregateTable holds windowed user and item engagement counters.
type AggregateTable struct {
	Users  map[string]ranking.Aggregates
	Items  map[string]ranking.Aggregates
	Cutoff time.Time
	Window time.Duration
}

// ComputeAggregates counts engagement over the window ending at the latest
// event timestamp. Plays are grade >= 2, clicks are grade >= 1 and the play
// rate is plays / (clicks + 1).
func ComputeAggregates(events []ranking.Event, windowDays int) AggregateTable {
	window := time.Duration(windowDays) * 24 * time.Hour
	table := AggregateTable{
		Users:  make(map[string]ranking.Aggregates),
		Items:  make(map[string]ranking.Aggregates),
		Window: window,
	}
	if len(events) == 0 {
		return table
	}

	maxTS := events[0].Timestamp
	for i := range events {
		if events[i].Timestamp.After(maxTS) {
			maxTS = events[i].Timestamp
		}
	}
	table.Cutoff = maxTS.Add(-window)

	for i := range events {
		ev := &events[i]
		if ev.Timestamp.Before(table.Cutoff) {
			continue
		}
		table.Users[ev.UserID] = accumulate(table.Users[ev.UserID], ev)
		table.Items[ev.ItemID] = accumulate(table.Items[ev.ItemID], ev)
	}

	for id, a := range table.Users {
		a.PlayRate = a.Plays / (a.Clicks + 1)
		table.Users[id] = a
	}
	for id, a := range table.Items {
		a.PlayRate = a.Plays / (a.Clicks + 1)
		table.Items[id] = a
	}
	return table
}

func accumulate(a ranking.Aggregates, ev *ranking.Event) ranking.Aggregates {
	a.WatchMinutes += ev.WatchMinutes
	if ev.Grade >= ranking.GradeShortPlay {
		a.Plays++
	}
	if ev.Grade >= ranking.GradeClick {
		a.Clicks++
	}
	return a
}

// Apply copies aggregates onto rows in place. Ids without activity in the
// window get zero aggregates.
func (t AggregateTable) Apply(rows []ranking.CandidateRow) {
	for i := range rows {
		rows[i].UserAgg = t.Users[rows[i].UserID]
		rows[i].ItemAgg = t.Items[rows[i].ItemID]
	}
}
