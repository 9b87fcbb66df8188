package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"execoj/internal/common/mq"
	"execoj/internal/execution/model"
	appErr "execoj/pkg/errors"
)

const eventTypeHeader = "type"

// MQEventPublisher publishes terminal execution events to a message queue.
type MQEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQEventPublisher creates a publisher for topic.
func NewMQEventPublisher(producer mq.Producer, topic string) *MQEventPublisher {
	return &MQEventPublisher{producer: producer, topic: topic}
}

// Publish sends event keyed by its execution id.
func (p *MQEventPublisher) Publish(ctx context.Context, event *model.ExecutionEvent) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("event publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("event topic is required")
	}
	if event == nil || event.ID == "" {
		return appErr.ValidationError("requestId", "required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal execution event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = event.ID
	message.SetHeader(eventTypeHeader, "execution."+string(event.Status))
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.PublishError, "publish execution event failed")
	}
	return nil
}
