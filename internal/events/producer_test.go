package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "photo-events", zap.NewNop())

	err := p.Publish(context.Background(), Event{
		Type:    PhotoCropped,
		UserID:  "42",
		Payload: map[string]int{"x": 7},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}

	msg := w.msgs[0]
	if string(msg.Key) != "42" {
		t.Errorf("key = %q, want 42", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != PhotoCropped {
		t.Errorf("headers = %+v", msg.Headers)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if decoded.Type != PhotoCropped || decoded.OccurredAt.IsZero() {
		t.Errorf("decoded = %+v", decoded)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close() error = %v closed = %v", err, w.closed)
	}
}

func TestPublishWriteError(t *testing.T) {
	broker := errors.New("broker down")
	p := newProducer(&fakeWriter{err: broker}, "photo-events", zap.NewNop())

	if err := p.Publish(context.Background(), Event{Type: PhotoUploaded, UserID: "1"}); !errors.Is(err, broker) {
		t.Errorf("Publish() error = %v, want wrapped broker error", err)
	}
}

func TestPublishUnmarshalablePayload(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "photo-events", zap.NewNop())

	if err := p.Publish(context.Background(), Event{Type: PhotoUploaded, Payload: make(chan int)}); err == nil {
		t.Error("Publish() accepted a payload that cannot be encoded")
	}
	if len(w.msgs) != 0 {
		t.Errorf("messages written = %d, want 0", len(w.msgs))
	}
}
