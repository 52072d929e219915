// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package api serves online rankings over HTTP using the Chi router.

# Endpoints

	GET  /api/v1/health                  service and model readiness
	GET  /api/v1/health/live             liveness probe
	GET  /api/v1/health/ready            503 until a model is served
	POST /api/v1/rank                    order candidates for a user
	GET  /api/v1/models                  registry versions
	GET  /api/v1/models/{version}        one version's metadata
	POST /api/v1/models/{version}/activate  serve a specific version
	GET  /api/v1/train                   trainer status
	POST /api/v1/train                   start a training run in the background
	GET  /metrics                        Prometheus exposition

# Errors

Failures use the APIResponse envelope with a stable code:

	VALIDATION_ERROR   400  malformed body, empty or duplicate candidates
	USER_NOT_FOUND     404  user_id not in the catalog
	ITEM_NOT_FOUND     404  a candidate not in the catalog
	MODEL_NOT_FOUND    404  registry version does not exist
	MODEL_NOT_READY    503  no model has been loaded yet
	TRAINING_CONFLICT  409  a training run is already in progress
	INTERNAL_ERROR     500  anything else

# Middleware

Every route gets request ids wired into the logging context, real-IP
extraction, panic recovery and CORS. API routes are additionally rate
limited per client IP with go-chi/httprate and instrumented with
Prometheus request metrics.
*/
package api
