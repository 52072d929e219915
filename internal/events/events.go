// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTopic is the topic model-published events are sent on.
const DefaultTopic = "ranking.model.published"

// ErrInvalidEvent indicates a payload that does not decode to a ModelPublished event.
var ErrInvalidEvent = errors.New("invalid model event")

// ModelPublished announces a new registry version.
type ModelPublished struct {
	EventID   string    `json:"event_id"`
	Version   int       `json:"version"`
	ModelType string    `json:"model_type"`
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ValNDCG   float64   `json:"val_ndcg"`
	TestNDCG  float64   `json:"test_ndcg"`
}

// Validate checks the fields consumers rely on.
func (e *ModelPublished) Validate() error {
	if e.Version < 1 {
		return fmt.Errorf("%w: version %d", ErrInvalidEvent, e.Version)
	}
	return nil
}

// Marshal encodes the event.
func (e *ModelPublished) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalModelPublished decodes and validates a payload.
func UnmarshalModelPublished(data []byte) (ModelPublished, error) {
	var e ModelPublished
	if err := json.Unmarshal(data, &e); err != nil {
		return ModelPublished{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return ModelPublished{}, err
	}
	return e, nil
}
