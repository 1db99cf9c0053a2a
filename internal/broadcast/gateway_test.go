package broadcast

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/testutil"
)

func newGateway(cfg Config) *Gateway {
	return New(cfg, mocks.NewFakeClock(), testutil.NopLogger())
}

func waitForSubscribers(t *testing.T, g *Gateway, id model.SessionID, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return g.SubscriberCount(id) == n },
		time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func progressEvent(id model.SessionID, n int) model.Event {
	return model.Event{
		Type:      model.EventProgressUpdated,
		SessionID: id,
		PlayerID:  "p1",
		Payload:   model.ProgressUpdatedPayload{PlayerID: "p1", Standings: []model.Standing{{PlayerID: "p1", CharsCorrect: n}}},
	}
}

func TestFormatSSEMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "player_joined",
			data:      `{"type":"player_joined"}`,
			expected:  "event: player_joined\ndata: {\"type\":\"player_joined\"}\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "test",
			data:      "line1\nline2",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "carriage returns",
			eventName: "test",
			data:      "line1\r\nline2\r\n",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatSSEMessage(tt.eventName, tt.data)))
		})
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	g := newGateway(DefaultConfig())
	defer g.Close()

	first := g.Subscribe("ABC123", "p1")
	second := g.Subscribe("ABC123", "p2")
	waitForSubscribers(t, g, "ABC123", 2)

	for i := 0; i < 20; i++ {
		g.Publish("ABC123", progressEvent("ABC123", i))
	}

	for _, sub := range []*Subscription{first, second} {
		for i := 0; i < 20; i++ {
			msg := receive(t, sub)
			payload := msg.Event.Payload.(model.ProgressUpdatedPayload)
			assert.Equal(t, i, payload.Standings[0].CharsCorrect)

			var decoded map[string]any
			require.NoError(t, json.Unmarshal(msg.Data, &decoded))
			assert.Equal(t, "progress_updated", decoded["type"])
			assert.Equal(t, "ABC123", decoded["sessionId"])
		}
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	g := newGateway(DefaultConfig())
	defer g.Close()

	a := g.Subscribe("AAAAAA", "p1")
	b := g.Subscribe("BBBBBB", "p2")
	waitForSubscribers(t, g, "AAAAAA", 1)
	waitForSubscribers(t, g, "BBBBBB", 1)

	g.Publish("AAAAAA", progressEvent("AAAAAA", 1))

	assert.Equal(t, model.SessionID("AAAAAA"), receive(t, a).Event.SessionID)
	select {
	case msg := <-b.Messages():
		t.Fatalf("unexpected message for other session: %+v", msg.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	g := newGateway(Config{SubscriberBuffer: 2})
	defer g.Close()

	slow := g.Subscribe("ABC123", "slow")
	fast := g.Subscribe("ABC123", "fast")
	waitForSubscribers(t, g, "ABC123", 2)

	var got []int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range fast.Messages() {
			got = append(got, msg.Event.Payload.(model.ProgressUpdatedPayload).Standings[0].CharsCorrect)
			if len(got) == 5 {
				return
			}
		}
	}()

	for i := 0; i < 5; i++ {
		g.Publish("ABC123", progressEvent("ABC123", i))
		// Let the fast reader drain so only the slow buffer overflows
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)

	waitForSubscribers(t, g, "ABC123", 1)
	drained := 0
	for range slow.Messages() {
		drained++
	}
	assert.Equal(t, 2, drained, "slow subscriber keeps what was buffered, then its channel closes")
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	g := newGateway(DefaultConfig())
	defer g.Close()

	g.Publish("NOBODY", progressEvent("NOBODY", 1))
	assert.Zero(t, g.SubscriberCount("NOBODY"))
}

func TestRemoveHubClosesSubscriptions(t *testing.T) {
	g := newGateway(DefaultConfig())
	defer g.Close()

	sub := g.Subscribe("ABC123", "p1")
	waitForSubscribers(t, g, "ABC123", 1)

	g.RemoveHub("ABC123")

	select {
	case _, ok := <-sub.Messages():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
	assert.Zero(t, g.SubscriberCount("ABC123"))

	// Unsubscribing after removal must not block or panic
	g.Unsubscribe(sub)
	g.RemoveHub("ABC123")
}

func TestUnsubscribe(t *testing.T) {
	g := newGateway(DefaultConfig())
	defer g.Close()

	sub := g.Subscribe("ABC123", "p1")
	waitForSubscribers(t, g, "ABC123", 1)

	g.Unsubscribe(sub)
	waitForSubscribers(t, g, "ABC123", 0)
	g.Unsubscribe(sub)
}

func TestServeSSE(t *testing.T) {
	g := newGateway(DefaultConfig())
	defer g.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.ServeSSE(w, r, "ABC123", "p1")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return name, data
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	name, data := readEvent()
	assert.Equal(t, "connected", name)
	assert.JSONEq(t, `{"sessionId":"ABC123"}`, data)

	waitForSubscribers(t, g, "ABC123", 1)
	g.Publish("ABC123", model.Event{Type: model.EventPlayerJoined, SessionID: "ABC123", PlayerID: "p2"})

	name, data = readEvent()
	assert.Equal(t, "player_joined", name)
	assert.Contains(t, data, `"playerId":"p2"`)

	cancel()
	waitForSubscribers(t, g, "ABC123", 0)
}

func TestServeWS(t *testing.T) {
	g := newGateway(DefaultConfig())
	defer g.Close()

	received := make(chan ClientMessage, 1)
	handle := func(ctx context.Context, msg ClientMessage) error {
		if msg.CharsCorrect > msg.CharsTyped {
			return model.Invalidf("chars correct exceeds chars typed")
		}
		received <- msg
		return nil
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = g.ServeWS(w, r, "ABC123", "p1", handle)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForSubscribers(t, g, "ABC123", 1)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeProgress, CharsTyped: 10, CharsCorrect: 9}))
	select {
	case msg := <-received:
		assert.Equal(t, 10, msg.CharsTyped)
		assert.Equal(t, 9, msg.CharsCorrect)
	case <-time.After(time.Second):
		t.Fatal("progress message not handled")
	}

	g.Publish("ABC123", progressEvent("ABC123", 9))
	var ev map[string]any
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "progress_updated", ev["type"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeProgress, CharsTyped: 1, CharsCorrect: 5}))
	var reply errorMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Message, "chars correct exceeds chars typed")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "chat"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Contains(t, reply.Message, "unknown message type")

	require.NoError(t, conn.Close())
	waitForSubscribers(t, g, "ABC123", 0)
}
