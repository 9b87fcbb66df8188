package mq_test

import (
	"context"
	"testing"

	"execoj/internal/common/mq"

	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishKeysByMessageID(t *testing.T) {
	w := &recordingWriter{}
	p := mq.NewKafkaProducerWithWriter(w)

	msg := mq.NewMessage([]byte(`{"status":"completed"}`))
	msg.ID = "exec-1"
	msg.SetHeader("type", "execution.completed")
	if err := p.Publish(context.Background(), "executions", msg); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	got := w.msgs[0]
	if got.Topic != "executions" || string(got.Key) != "exec-1" {
		t.Fatalf("unexpected topic/key: %s %s", got.Topic, got.Key)
	}
	headers := map[string]string{}
	for _, h := range got.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["type"] != "execution.completed" || headers["x-message-id"] != "exec-1" {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestPublishRejectsMissingTopic(t *testing.T) {
	p := mq.NewKafkaProducerWithWriter(&recordingWriter{})
	if err := p.Publish(context.Background(), "", mq.NewMessage(nil)); err == nil {
		t.Fatal("expected error for empty topic")
	}
	if err := p.Publish(context.Background(), "t", nil); err == nil {
		t.Fatal("expected error for nil message")
	}
}

func TestPublishBatch(t *testing.T) {
	w := &recordingWriter{}
	p := mq.NewKafkaProducerWithWriter(w)
	msgs := []*mq.Message{mq.NewMessage([]byte("a")), mq.NewMessage([]byte("b"))}
	if err := p.PublishBatch(context.Background(), "t", msgs); err != nil {
		t.Fatalf("publish batch failed: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("expected two messages, got %d", len(w.msgs))
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Fatal("expected writer to be closed")
	}
}

func TestNewKafkaProducerRequiresBrokers(t *testing.T) {
	if _, err := mq.NewKafkaProducer(mq.KafkaConfig{}); err == nil {
		t.Fatal("expected error without brokers")
	}
}
