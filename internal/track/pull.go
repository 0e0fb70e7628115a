package track

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/provider"
	"mediagen/internal/status"
)

// Poller drives a pull-mode plugin on a fixed interval until the task
// reaches a terminal state. Each tick is one stateless CheckStatus call; the
// poller owns only the caller-side loop concerns: interval, the monotone
// percent clamp, re-polling after transient transport errors, and stopping
// after the single terminal update.
type Poller struct {
	plugin   provider.PullPlugin
	interval time.Duration
	logger   zerolog.Logger
}

// NewPoller wires a polling loop for the given plugin. A non-positive
// interval falls back to three seconds.
func NewPoller(plugin provider.PullPlugin, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{plugin: plugin, interval: interval, logger: logger}
}

// Run polls until a terminal update is delivered or the context is
// cancelled. Cancellation stops future polls and emits nothing further; no
// cancel request is sent to the provider. The channel is closed when the
// loop ends.
func (p *Poller) Run(ctx context.Context, task provider.Task) <-chan status.Update {
	updates := make(chan status.Update, 16)
	go p.run(ctx, task, updates)
	return updates
}

func (p *Poller) run(ctx context.Context, task provider.Task, updates chan<- status.Update) {
	defer close(updates)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var floor float64
	for {
		u, err := p.plugin.CheckStatus(ctx, task.Handle)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient transport blip: keep the task alive and re-poll.
			p.logger.Warn().Err(err).Str("task_id", task.ID).Msg("poll: status check failed")
		} else {
			if u.Percent < floor {
				u.Percent = floor
			}
			floor = u.Percent
			if u.OutputURLs == nil {
				u.OutputURLs = []string{}
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return
			}
			if u.Terminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
