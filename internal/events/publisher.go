package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

const defaultPublishTimeout = 5 * time.Second

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// Publisher sends property lifecycle events to a Pub/Sub topic. A Publisher without a
// topic drops events.
type Publisher struct {
	topic   topicPublisher
	logg    *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewPublisher wraps a Pub/Sub topic handle. p may be nil.
func NewPublisher(p *gcppubsub.Publisher, logg *logger.Logger) *Publisher {
	var topic topicPublisher
	if p != nil {
		topic = &gcpPublisher{Publisher: p}
	}
	return newPublisher(topic, logg)
}

func newPublisher(topic topicPublisher, logg *logger.Logger) *Publisher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Publisher{topic: topic, logg: logg, timeout: defaultPublishTimeout, now: time.Now}
}

// Publish sends ev and waits for the server ack.
func (p *Publisher) Publish(ctx context.Context, ev PropertyEvent) error {
	if p == nil || p.topic == nil {
		return nil
	}
	env, err := newEnvelope(ev, p.now())
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id":    env.EventID,
			"event_type":  string(ev.Type),
			"property_id": ev.PropertyID.String(),
			"occurred_at": env.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result := p.topic.Publish(ctx, msg)
	if result == nil {
		return errors.New("publisher returned no result")
	}
	serverID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	p.logg.Debug(p.logg.WithFields(ctx, map[string]any{"event_type": ev.Type, "message_id": serverID}), "property event published")
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
