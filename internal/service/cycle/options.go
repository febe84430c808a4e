package cycle

import "photolabels/internal/logger"

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithJournal sets where cycle telemetry is recorded.
func WithJournal(j Journal) Option {
	return func(c *Controller) {
		if j != nil {
			c.journal = j
		}
	}
}

// WithSession tags reports, records and log lines with a session id.
func WithSession(id string) Option {
	return func(c *Controller) {
		c.session = id
	}
}
