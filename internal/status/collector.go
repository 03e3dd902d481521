package status

import (
	"context"
	"log/slog"
)

// Collector receives pool events over a buffered channel and aggregates them
// off the request path.
type Collector struct {
	eventCh chan Event
	status  *Status
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		status:  NewStatus(),
		logger:  logger,
	}
}

// EventChannel returns the send side of the event pipeline.
func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("status collector started")
	defer c.logger.Info("status collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown.
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventNodeSelected:
		c.status.RecordSelection(event.Node)
	case EventNodeDown:
		c.status.RecordEviction(event.Node)
	case EventNodeRestored:
		c.status.RecordRecovery(event.Node)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.status.Snapshot()
}
