package app

import "github.com/charlesng35/rosterd/internal/jobs"

// RunnerConfig converts JobsConfig into the background runner representation.
func (c JobsConfig) RunnerConfig() jobs.Config {
	return jobs.Config{
		Workers:   c.Workers,
		QueueSize: c.QueueSize,
		Timeout:   c.Timeout,
	}
}
