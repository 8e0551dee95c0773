// Package events delivers session lifecycle events to the configured
// transports and the audit table.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/metrics"
	"github.com/scp-platform/supplier-console/pkg/model"
)

// Sink receives session events.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt model.SessionEvent) error
}

// DefaultPublishTimeout bounds one Record call across all sinks.
const DefaultPublishTimeout = 3 * time.Second

// Recorder fans an event out to every sink concurrently. A failing sink is
// logged and counted. A stuck sink holds the caller for at most the publish
// timeout, after which its context is cancelled.
type Recorder struct {
	sinks   []Sink
	logger  *zap.Logger
	timeout time.Duration
}

func NewRecorder(logger *zap.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	live := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return &Recorder{sinks: live, logger: logger, timeout: DefaultPublishTimeout}
}

// WithTimeout sets the publish deadline. Non-positive values keep the default.
func (r *Recorder) WithTimeout(d time.Duration) *Recorder {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Record publishes evt to all sinks and returns the joined failures.
// Publishing outlives a cancelled request but not the publish timeout.
// A nil Recorder drops the event.
func (r *Recorder) Record(ctx context.Context, evt model.SessionEvent) error {
	if r == nil || len(r.sinks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	errs := make([]error, len(r.sinks))
	var wg sync.WaitGroup
	for i, s := range r.sinks {
		wg.Add(1)
		go func(i int, s Sink) {
			defer wg.Done()
			if err := s.Publish(ctx, evt); err != nil {
				metrics.IncEventPublishError(s.Name())
				r.logger.Warn("events.publish_failed",
					zap.String("sink", s.Name()),
					zap.String("type", string(evt.Type)),
					zap.String("workspace", evt.Workspace),
					zap.Error(err))
				errs[i] = err
			}
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Sinks reports the configured sink names.
func (r *Recorder) Sinks() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.sinks))
	for i, s := range r.sinks {
		out[i] = s.Name()
	}
	return out
}
