package diag

import "github.com/pable/cs-impact/internal/logger"

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithNamespace sets the Prometheus namespace for the recorder's counters.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithLogger sets the logger substitutions are reported to.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}
