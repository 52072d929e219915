// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package ranking

import "time"

// Prime time and weekend thresholds. Day of week counts from Monday = 0.
const (
	PrimeTimeStartHour = 19
	PrimeTimeEndHour   = 23
	SaturdayIndex      = 5
	SundayIndex        = 6
)

// KidsGenre marks children's content.
const KidsGenre = "Kids"

// DeriveContext builds context features from an hour and a Monday-based day of week.
func DeriveContext(hour, dayOfWeek int) ContextFeatures {
	return ContextFeatures{
		Hour:        hour,
		DayOfWeek:   dayOfWeek,
		IsPrimeTime: hour >= PrimeTimeStartHour && hour <= PrimeTimeEndHour,
		IsWeekend:   dayOfWeek == SaturdayIndex || dayOfWeek == SundayIndex,
	}
}

// ContextAt derives context features from an event timestamp.
func ContextAt(ts time.Time) ContextFeatures {
	return DeriveContext(ts.Hour(), MondayIndex(ts.Weekday()))
}

// MondayIndex converts time.Weekday (Sunday = 0) to Monday = 0.
func MondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// DeriveCross builds cross features for a user/item pair.
func DeriveCross(u User, it Item, referenceYear int) CrossFeatures {
	isKids := it.Genre == KidsGenre
	return CrossFeatures{
		ItemAge:       referenceYear - it.ReleaseYear,
		IsKidsContent: isKids,
		KidsMismatch:  u.IsKidsProfile && !isKids,
	}
}
