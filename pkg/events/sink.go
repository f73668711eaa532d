package events

import (
	"context"
	"strings"

	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/rs/zerolog"
)

// Sink consumes events delivered by a broker subscription
type Sink interface {
	Handle(ctx context.Context, event *Event) error
	Close() error
}

// Run feeds every event published on b to sink until ctx is done. Handler
// errors are logged and do not stop delivery. The sink is closed on return.
func Run(ctx context.Context, b *Broker, sink Sink) error {
	logger := log.WithComponent("events")
	sub := b.Subscribe()
	defer func() {
		b.Unsubscribe(sub)
		if err := sink.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close event sink")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub:
			if !ok {
				return nil
			}
			if err := sink.Handle(ctx, event); err != nil {
				logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Event sink failed")
			}
		}
	}
}

// LogSink writes events to a zerolog logger
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging through the events component logger
func NewLogSink() *LogSink {
	return &LogSink{logger: log.WithComponent("events")}
}

// Handle implements Sink
func (s *LogSink) Handle(ctx context.Context, event *Event) error {
	var e *zerolog.Event
	if strings.HasSuffix(string(event.Type), "failed") || strings.HasSuffix(string(event.Type), "impossible") {
		e = s.logger.Warn()
	} else {
		e = s.logger.Info()
	}

	e = e.Str("event_type", string(event.Type)).Str("event_id", event.ID)
	if event.RolloutID != "" {
		e = e.Str("rollout_id", event.RolloutID)
	}
	if event.Service != "" {
		e = e.Str("service", event.Service)
	}
	for k, v := range event.Metadata {
		e = e.Str(k, v)
	}
	e.Msg(event.Message)
	return nil
}

// Close implements Sink
func (s *LogSink) Close() error {
	return nil
}
