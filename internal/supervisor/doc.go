// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package supervisor runs the long-lived parts of the ranking server under a
suture v4 supervisor tree.

The tree has three layers so a failure in one does not restart the others:

	RootSupervisor ("marquee")
	├── TrainingSupervisor ("training-layer")
	│   └── TrainingService (if training.enabled)
	├── MessagingSupervisor ("messaging-layer")
	│   └── ModelEventsService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's failure decay and backoff.
Supervisor events are logged through sutureslog on the zerolog-backed
slog.Logger from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}
	tree.AddTrainingService(trainingSvc)
	tree.AddMessagingService(eventsSvc)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

Service implementations live in the services subpackage.
*/
package supervisor
