package statecore

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/coordinate"
	"github.com/launchforge/statecore/internal/persist"
)

// Option applies configuration to an Orchestrator.
type Option func(*Orchestrator)

// WithChart registers a chart. Charts must be registered before Start; one
// chart per entity type.
func WithChart(c *chart.Chart) Option {
	return func(o *Orchestrator) {
		o.charts[c.Type] = c
	}
}

// WithCharts registers several charts at once.
func WithCharts(cs ...*chart.Chart) Option {
	return func(o *Orchestrator) {
		for _, c := range cs {
			o.charts[c.Type] = c
		}
	}
}

// WithAdapter sets the persistence adapter. Defaults to the in-memory
// adapter, which durably records nothing across restarts.
func WithAdapter(a persist.Adapter) Option {
	return func(o *Orchestrator) {
		o.adapter = a
	}
}

// WithRules sets the cross-machine coordination rule table.
func WithRules(rules []coordinate.Rule) Option {
	return func(o *Orchestrator) {
		o.rules = rules
	}
}

// WithLogger sets the logger. Defaults to a disabled logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithCleanupInterval sets how often the disposal sweep runs (default 5m).
func WithCleanupInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.cleanupInterval = d
		}
	}
}

// WithInactivityThreshold sets how long an instance may sit idle before the
// sweep disposes of it (default 30m).
func WithInactivityThreshold(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.inactivity = d
		}
	}
}

// WithCoordinatorOptions forwards options to the coordinator.
func WithCoordinatorOptions(opts ...coordinate.Option) Option {
	return func(o *Orchestrator) {
		o.coordOpts = append(o.coordOpts, opts...)
	}
}
