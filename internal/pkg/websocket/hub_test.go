package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
)

func startHub(t *testing.T, filter Filter) (*Hub, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	upgrader := NewUpgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(upgrader, w, r, 1, filter)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	return hub, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHub_PublishesMatchingEntries(t *testing.T) {
	hub, conn := startHub(t, Filter{ActionPrefix: "fee."})

	hub.Publish(models.ActivityLog{ID: 1, Action: "auth.login", EntityType: "user"})
	hub.Publish(models.ActivityLog{ID: 2, Action: "fee.payment.recorded", EntityType: "fee"})

	ev := readEvent(t, conn)
	assert.Equal(t, EventActivity, ev["type"])
	data := ev["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["id"])
	assert.Equal(t, "fee.payment.recorded", data["action"])
}

func TestHub_FilterControlMessage(t *testing.T) {
	hub, conn := startHub(t, Filter{})

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":   "filter",
		"filter": map[string]string{"entityType": "grade"},
	}))
	ack := readEvent(t, conn)
	assert.Equal(t, EventFilter, ack["type"])

	hub.Publish(models.ActivityLog{ID: 3, Action: "fee.created", EntityType: "fee"})
	hub.Publish(models.ActivityLog{ID: 4, Action: "grade.created", EntityType: "grade"})

	ev := readEvent(t, conn)
	assert.Equal(t, float64(4), ev["data"].(map[string]interface{})["id"])
}

func TestHub_UnknownMessage(t *testing.T) {
	_, conn := startHub(t, Filter{})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"shout"}`)))
	ev := readEvent(t, conn)
	assert.Equal(t, EventError, ev["type"])
}

func TestFilter_Matches(t *testing.T) {
	uid := int64(9)
	other := int64(10)
	entry := models.ActivityLog{Action: "attendance.marked", EntityType: "Class", UserID: &uid}

	assert.True(t, Filter{}.Matches(entry))
	assert.True(t, Filter{ActionPrefix: "attendance."}.Matches(entry))
	assert.True(t, Filter{EntityType: "class"}.Matches(entry))
	assert.True(t, Filter{UserID: &uid}.Matches(entry))
	assert.False(t, Filter{UserID: &other}.Matches(entry))
	assert.False(t, Filter{ActionPrefix: "fee."}.Matches(entry))
	assert.False(t, Filter{UserID: &uid}.Matches(models.ActivityLog{Action: "x"}))
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	up := NewUpgrader([]string{"https://school.example"})
	req := httptest.NewRequest(http.MethodGet, "http://api.school.example/stream", nil)

	req.Header.Set("Origin", "https://school.example")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "http://api.school.example")
	assert.True(t, up.CheckOrigin(req), "same host is always allowed")
}
