package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_EmitAndSubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	fixed := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return fixed }

	a, unsubA := hub.Subscribe()
	b, unsubB := hub.Subscribe()
	defer unsubB()
	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Emit("market_refreshed", map[string]interface{}{"updated": 3})

	for _, ch := range []<-chan Event{a, b} {
		evt := receive(t, ch)
		assert.Equal(t, MarketRefreshed, evt.Type)
		assert.Equal(t, fixed, evt.Timestamp)
		assert.Equal(t, 3, evt.Data["updated"])
		assert.Len(t, evt.ID, 36)
	}

	unsubA()
	unsubA()
	assert.Equal(t, 1, hub.SubscriberCount())
	_, open := <-a
	assert.False(t, open, "unsubscribe closes the channel")
}

func TestHub_Publish(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ch, unsub := hub.Subscribe()
	defer unsub()

	Publish(hub, &SnapshotTakenData{Date: "2024-05-01", TotalEquity: 1500, TotalInvested: 1000, Profit: 500})
	Publish(hub, nil)
	Publish(nil, &SnapshotTakenData{Date: "2024-05-02"})

	evt := receive(t, ch)
	assert.Equal(t, SnapshotTaken, evt.Type)
	assert.Equal(t, "2024-05-01", evt.Data["date"])
	assert.Equal(t, 1500.0, evt.Data["total_equity"])

	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ch, unsub := hub.Subscribe()
	defer unsub()

	for i := 0; i < DefaultBufferSize+10; i++ {
		hub.Emit("backup_completed", nil)
	}

	assert.Len(t, ch, DefaultBufferSize)
}

func TestToMap(t *testing.T) {
	m := ToMap(&BackupCompletedData{RunID: "r1", Databases: []string{"portfolio"}, Remote: true})
	assert.Equal(t, "r1", m["run_id"])
	assert.Equal(t, true, m["remote"])
	assert.Empty(t, ToMap(nil))
}

func TestHub_ServeWS(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	Publish(hub, &MarketRefreshedData{Updated: 2, Failed: 1})

	var evt Event
	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	assert.Equal(t, MarketRefreshed, evt.Type)
	assert.Equal(t, 2.0, evt.Data["updated"])

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}
