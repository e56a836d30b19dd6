package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmart/foodmart-backend/pkg/enums"
)

// memoryBroker is an in-process Broadcaster and Source.
type memoryBroker struct {
	mu         sync.Mutex
	subs       map[string][]*memorySub
	subscribed chan string
	failPub    bool
}

func newMemoryBroker() *memoryBroker {
	return &memoryBroker{subs: map[string][]*memorySub{}, subscribed: make(chan string, 4)}
}

func (b *memoryBroker) Publish(_ context.Context, channel string, payload any) error {
	if b.failPub {
		return errors.New("connection refused")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[channel] {
		s.ch <- string(payload.([]byte))
	}
	return nil
}

func (b *memoryBroker) Subscribe(_ context.Context, channel string) (Subscription, error) {
	b.mu.Lock()
	s := &memorySub{ch: make(chan string, 8)}
	b.subs[channel] = append(b.subs[channel], s)
	b.mu.Unlock()
	b.subscribed <- channel
	return s, nil
}

type memorySub struct {
	ch chan string
}

func (s *memorySub) Messages() <-chan string { return s.ch }
func (s *memorySub) Close() error             { return nil }

func TestPublishStatusFrame(t *testing.T) {
	broker := newMemoryBroker()
	itemID := uuid.New()
	sub, err := broker.Subscribe(context.Background(), Channel(itemID))
	require.NoError(t, err)
	<-broker.subscribed

	require.NoError(t, NewPublisher(broker, nil).PublishStatus(context.Background(), itemID, enums.LineItemStatusAccepted))

	var msg map[string]string
	require.NoError(t, json.Unmarshal([]byte(<-sub.Messages()), &msg))
	assert.Equal(t, map[string]string{
		"type":    "order_update",
		"food_id": itemID.String(),
		"status":  "accepted",
	}, msg)
}

func TestChannelName(t *testing.T) {
	id := uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	assert.Equal(t, "order_1b4e28ba-2fa1-11d2-883f-0016d3cca427", Channel(id))
}

func TestPublishStatusErrors(t *testing.T) {
	broker := newMemoryBroker()
	broker.failPub = true
	err := NewPublisher(broker, nil).PublishStatus(context.Background(), uuid.New(), enums.LineItemStatusCancelled)
	assert.ErrorContains(t, err, "connection refused")

	var nilPublisher *Publisher
	assert.NoError(t, nilPublisher.PublishStatus(context.Background(), uuid.New(), enums.LineItemStatusCancelled))
}

func TestHandlerRelaysMessages(t *testing.T) {
	broker := newMemoryBroker()
	itemID := uuid.New()
	handler := NewHandler(broker, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Serve(w, r, itemID)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case ch := <-broker.subscribed:
		assert.Equal(t, Channel(itemID), ch)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never subscribed")
	}

	require.NoError(t, NewPublisher(broker, nil).PublishStatus(context.Background(), itemID, enums.LineItemStatusCompleted))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg StatusMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, StatusMessage{Type: MessageTypeOrderUpdate, FoodID: itemID, Status: enums.LineItemStatusCompleted}, msg)
}
