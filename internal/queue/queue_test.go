package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() ReservationEvent {
	return ReservationEvent{
		Type:          EventConfirmed,
		ListingID:     "l-1",
		ListingTitle:  "Desk lamp",
		BuyerID:       "buyer-1",
		SellerID:      "seller-1",
		ActorID:       "seller-1",
		ListingStatus: "reserved",
		OccurredAt:    time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestFormatActivity(t *testing.T) {
	line := FormatActivity(testEvent())
	assert.Equal(t,
		"[2024-09-01T10:00:00Z] Reservation confirmed | listing_id=l-1 | title=\"Desk lamp\" | buyer_id=buyer-1 | seller_id=seller-1 | actor_id=seller-1 | status=reserved\n",
		line)
}

func TestHandleMessageAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "activity.log")
	c := NewActivityConsumer("amqp://unused", "", path, slog.New(slog.NewTextHandler(io.Discard, nil)))

	body, err := json.Marshal(testEvent())
	require.NoError(t, err)
	require.NoError(t, c.HandleMessage(body))

	sold := testEvent()
	sold.Type = EventSold
	sold.ListingStatus = "sold"
	body, err = json.Marshal(sold)
	require.NoError(t, err)
	require.NoError(t, c.HandleMessage(body))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Reservation confirmed")
	assert.Contains(t, lines[1], "Listing sold")
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	c := NewActivityConsumer("amqp://unused", "", filepath.Join(t.TempDir(), "a.log"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, c.HandleMessage([]byte("not json")))
	assert.Error(t, c.HandleMessage([]byte(`{"type":""}`)))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByListing(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}

	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "l-1", string(w.msgs[0].Key))
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)

	var got ReservationEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, EventConfirmed, got.Type)

	w.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), testEvent()))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), testEvent()))
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestRunKafkaCommitsEveryMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	c := NewActivityConsumer("", "", path, slog.New(slog.NewTextHandler(io.Discard, nil)))

	body, err := json.Marshal(testEvent())
	require.NoError(t, err)
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: body},
		{Offset: 2, Value: []byte("garbage")},
		{Offset: 3, Value: body},
	}}

	err = c.RunKafka(context.Background(), r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
	assert.True(t, r.closed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))
}
