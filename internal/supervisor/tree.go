// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/marquee/internal/config"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// TreeConfigFromServer takes the shutdown timeout from the server section.
func TreeConfigFromServer(cfg *config.ServerConfig) TreeConfig {
	tc := DefaultTreeConfig()
	if cfg != nil && cfg.ShutdownTimeout > 0 {
		tc.ShutdownTimeout = cfg.ShutdownTimeout
	}
	return tc
}

// SupervisorTree is the server's supervisor hierarchy:
//   - training: scheduled and on-demand training runs
//   - messaging: model-published event consumer
//   - api: HTTP server
//
// A training crash restarts only the training layer; the API keeps serving
// the model it already holds.
type SupervisorTree struct {
	root      *suture.Supervisor
	training  *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
	logger    *slog.Logger
	config    TreeConfig
}

// NewSupervisorTree builds the tree. Zero TreeConfig fields take the
// DefaultTreeConfig values.
func NewSupervisorTree(logger *slog.Logger, tc TreeConfig) (*SupervisorTree, error) {
	defaults := DefaultTreeConfig()
	if tc.FailureThreshold == 0 {
		tc.FailureThreshold = defaults.FailureThreshold
	}
	if tc.FailureDecay == 0 {
		tc.FailureDecay = defaults.FailureDecay
	}
	if tc.FailureBackoff == 0 {
		tc.FailureBackoff = defaults.FailureBackoff
	}
	if tc.ShutdownTimeout == 0 {
		tc.ShutdownTimeout = defaults.ShutdownTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	// MustHook has a pointer receiver.
	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	// Children inherit the EventHook when added to the root.
	childSpec := suture.Spec{
		FailureThreshold: tc.FailureThreshold,
		FailureDecay:     tc.FailureDecay,
		FailureBackoff:   tc.FailureBackoff,
		Timeout:          tc.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = eventHook

	root := suture.New("marquee", rootSpec)
	training := suture.New("training-layer", childSpec)
	messaging := suture.New("messaging-layer", childSpec)
	api := suture.New("api-layer", childSpec)

	root.Add(training)
	root.Add(messaging)
	root.Add(api)

	return &SupervisorTree{
		root:      root,
		training:  training,
		messaging: messaging,
		api:       api,
		logger:    logger,
		config:    tc,
	}, nil
}

// Root returns the root supervisor for direct access if needed.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// AddTrainingService adds a service to the training layer.
func (t *SupervisorTree) AddTrainingService(svc suture.Service) suture.ServiceToken {
	return t.training.Add(svc)
}

// AddMessagingService adds a service to the messaging layer.
func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddAPIService adds a service to the API layer.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The channel receives the
// result when the tree stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that outlived the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
