package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"
	"a2dpmgr/pkg/batch"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType is a published diagnostic/observability event, not a state
// input: nothing subscribed to this bus can feed a transition back into
// a PeerStateMachine (§9B keeps the control thread single-owner).
type EventType string

const (
	EventConnectionState   EventType = "connection.state_changed"
	EventAudioState        EventType = "audio.state_changed"
	EventActivePeerChanged EventType = "role.active_peer_changed"
)

// Event represents a distributed event
type Event struct {
	Type       EventType       `json:"type"`
	InstanceID string          `json:"instance_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Role       domain.RoleKind `json:"role"`
	Address    domain.Address  `json:"address,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// publishOp adapts one Event into a batch.Operation so EventBus.Publish
// can hand it to a Batcher instead of calling Redis synchronously on
// every dispatch (§9B's batched-publish note).
type publishOp struct {
	client  *redis.Client
	channel string
	data    []byte
}

func (o *publishOp) Execute(ctx context.Context) error {
	return o.client.Publish(ctx, o.channel, o.data).Err()
}

// batchProcessor publishes each operation in a flushed batch individually;
// Redis PUBLISH has no native multi-message pipeline benefit here beyond
// what client-side pipelining already gives us, so the processor just
// drains the batch.
type batchProcessor struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

func (p *batchProcessor) ProcessBatch(ctx context.Context, operations []batch.Operation) error {
	pipe := p.client.Pipeline()
	for _, op := range operations {
		pubOp, ok := op.(*publishOp)
		if !ok {
			continue
		}
		pipe.Publish(ctx, pubOp.channel, pubOp.data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Warnw("failed to flush event batch", "error", err, "count", len(operations))
		return err
	}
	return nil
}

// EventBus provides event publishing and subscription for coordination
// across A2DP manager instances watching the same set of peers.
type EventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
	channel    string
	batcher    *batch.Batcher
}

// NewEventBus creates a new event bus. batchSize/batchInterval control
// how often queued events are flushed to Redis as a single pipeline.
func NewEventBus(
	client *redis.Client,
	instanceID string,
	batchSize int,
	batchInterval time.Duration,
	logger *zap.SugaredLogger,
) *EventBus {
	eb := &EventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
		channel:    "a2dpmgr:events",
	}
	eb.batcher = batch.NewBatcher(batchSize, batchInterval, &batchProcessor{client: client, logger: logger})
	return eb
}

// Publish queues an event for batched delivery to the event bus.
func (eb *EventBus) Publish(event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return eb.batcher.Add(&publishOp{client: eb.client, channel: eb.channel, data: data})
}

// Subscribe subscribes to events and calls handler for each event
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	if eb.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	eb.pubsub = eb.client.Subscribe(ctx, eb.channel)
	defer eb.pubsub.Close()

	ch := eb.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			// Skip events from this instance
			if event.InstanceID == eb.instanceID {
				continue
			}

			if err := handler(&event); err != nil {
				eb.logger.Warnw("error handling event",
					"type", event.Type,
					"error", err,
				)
			}
		}
	}
}

// PublishConnectionState publishes a §4.2 connection-state change.
func (eb *EventBus) PublishConnectionState(role domain.RoleKind, address domain.Address, state string) error {
	payload, _ := json.Marshal(map[string]interface{}{"state": state})
	return eb.Publish(&Event{Type: EventConnectionState, Role: role, Address: address, Payload: payload})
}

// PublishAudioState publishes a §4.2 audio-state change.
func (eb *EventBus) PublishAudioState(role domain.RoleKind, address domain.Address, state string) error {
	payload, _ := json.Marshal(map[string]interface{}{"state": state})
	return eb.Publish(&Event{Type: EventAudioState, Role: role, Address: address, Payload: payload})
}

// PublishActivePeerChanged publishes a §4.4 active-peer swap.
func (eb *EventBus) PublishActivePeerChanged(role domain.RoleKind, address domain.Address) error {
	return eb.Publish(&Event{Type: EventActivePeerChanged, Role: role, Address: address})
}

// Close closes the event bus
func (eb *EventBus) Close() error {
	eb.batcher.Stop()
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}

var _ ports.EventPublisher = (*EventBus)(nil)
