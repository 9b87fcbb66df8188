package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"execoj/internal/common/mq"
	"execoj/internal/execution/model"
	"execoj/internal/execution/repository"
	appErr "execoj/pkg/errors"
)

type fakeProducer struct {
	topic string
	msgs  []*mq.Message
	err   error
}

func (p *fakeProducer) Publish(_ context.Context, topic string, message *mq.Message) error {
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.msgs = append(p.msgs, message)
	return nil
}

func (p *fakeProducer) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	for _, m := range messages {
		if err := p.Publish(ctx, topic, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestPublishExecutionEvent(t *testing.T) {
	producer := &fakeProducer{}
	pub := repository.NewMQEventPublisher(producer, "execution.events")

	ev := &model.ExecutionEvent{ID: "e1", Status: model.StatusFailed, ErrorKind: model.KindCompilation}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if producer.topic != "execution.events" || len(producer.msgs) != 1 {
		t.Fatalf("unexpected publish: topic=%s msgs=%d", producer.topic, len(producer.msgs))
	}
	msg := producer.msgs[0]
	if msg.ID != "e1" {
		t.Fatalf("message should be keyed by execution id, got %q", msg.ID)
	}
	if typ, _ := msg.GetHeader("type"); typ != "execution.failed" {
		t.Fatalf("unexpected type header: %q", typ)
	}
	var decoded model.ExecutionEvent
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.ErrorKind != model.KindCompilation {
		t.Fatalf("unexpected body: %+v", decoded)
	}
}

func TestPublishExecutionEventErrors(t *testing.T) {
	var nilPub *repository.MQEventPublisher
	if err := nilPub.Publish(context.Background(), &model.ExecutionEvent{ID: "x"}); appErr.GetCode(err) != appErr.ServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}

	pub := repository.NewMQEventPublisher(&fakeProducer{err: errors.New("broker down")}, "t")
	if err := pub.Publish(context.Background(), &model.ExecutionEvent{ID: "x"}); appErr.GetCode(err) != appErr.PublishError {
		t.Fatalf("expected PublishError, got %v", err)
	}
}
