// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/pipeline"
	"github.com/tomtom215/marquee/internal/ranking/registry"
	"github.com/tomtom215/marquee/internal/validation"
)

// Error codes returned in APIError.Code.
const (
	CodeValidation       = validation.CodeValidationError
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeItemNotFound     = "ITEM_NOT_FOUND"
	CodeModelNotFound    = "MODEL_NOT_FOUND"
	CodeModelNotReady    = "MODEL_NOT_READY"
	CodeTrainingConflict = "TRAINING_CONFLICT"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// errorStatus maps a domain error to an HTTP status, error code and
// client-facing message. Internal errors get a generic message.
func errorStatus(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, ranking.ErrEmptyCandidateSet):
		return http.StatusBadRequest, CodeValidation, "candidates must not be empty"
	case errors.Is(err, ranking.ErrUnknownUser):
		return http.StatusNotFound, CodeUserNotFound, err.Error()
	case errors.Is(err, ranking.ErrUnknownItem):
		return http.StatusNotFound, CodeItemNotFound, err.Error()
	case errors.Is(err, ranking.ErrNotTrained):
		return http.StatusServiceUnavailable, CodeModelNotReady, "no model is loaded"
	case errors.Is(err, registry.ErrModelNotFound):
		return http.StatusNotFound, CodeModelNotFound, err.Error()
	case errors.Is(err, pipeline.ErrTrainingInProgress):
		return http.StatusConflict, CodeTrainingConflict, err.Error()
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}
