// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Command server serves online rankings and, when enabled, retrains the
ranker on a schedule inside the same process.

	RootSupervisor ("marquee")
	├── TrainingSupervisor ("training-layer")
	│   └── TrainingService (TRAINING_ENABLED=true)
	├── MessagingSupervisor ("messaging-layer")
	│   └── ModelEventsService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Startup order:

 1. Configuration (koanf: defaults, CONFIG_PATH or config.yaml, environment)
 2. Logging (zerolog)
 3. DuckDB, model registry, optional BadgerDB feature store, event bus
 4. Scorer with the catalog in DuckDB and the latest registry version
 5. Supervisor tree

The server answers /api/v1/health before any model exists; /api/v1/rank
returns 503 MODEL_NOT_READY until the first version is loaded.

# Build Tags

	go build ./cmd/server               # in-process event bus
	go build -tags nats ./cmd/server    # EVENTS_BACKEND=nats available

# Example

	export DATA_USERS_PATH=/data/raw/users.csv
	export DATA_ITEMS_PATH=/data/raw/items.csv
	export DATA_INTERACTIONS_PATH=/data/raw/interactions.csv
	export TRAINING_ENABLED=true
	./server

SIGINT and SIGTERM stop the tree; in-flight requests get SHUTDOWN_TIMEOUT
to finish.
*/
package main
