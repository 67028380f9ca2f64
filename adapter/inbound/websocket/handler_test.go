package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/service"
)

func dial(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestHandler_StreamsResults(t *testing.T) {
	b := service.NewBroadcaster(8, nil, nil)
	h := NewHandler(b, nil)
	conn := dial(t, h)

	var hello map[string]string
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])
	assert.NotEmpty(t, hello["subscriptionId"])
	assert.Equal(t, 1, b.SubscriberCount())

	ev := model.NewEvent(model.KindCreate(model.ObjectFile), "/srv/new.txt")
	b.Publish(model.Result{Event: ev})
	b.Publish(model.Result{Err: model.ErrChannelClosed})

	var msg struct {
		Type  string       `json:"type"`
		Event *model.Event `json:"event"`
		Error string       `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, []string{"/srv/new.txt"}, msg.Event.Paths)
	assert.True(t, msg.Event.Kind.Equal(model.KindCreate(model.ObjectFile)))

	msg.Event = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "channel closed", msg.Error)
}

func TestHandler_PingPong(t *testing.T) {
	h := NewHandler(service.NewBroadcaster(8, nil, nil), nil)
	conn := dial(t, h)

	var hello map[string]string
	require.NoError(t, conn.ReadJSON(&hello))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])
}

func TestHandler_DisconnectUnsubscribes(t *testing.T) {
	b := service.NewBroadcaster(8, nil, nil)
	h := NewHandler(b, nil)
	conn := dial(t, h)

	var hello map[string]string
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, 1, h.ConnectionCount())

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	assert.Eventually(t, func() bool {
		return b.SubscriberCount() == 0 && h.ConnectionCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandler_Cleanup(t *testing.T) {
	b := service.NewBroadcaster(8, nil, nil)
	h := NewHandler(b, nil)
	conn := dial(t, h)

	var hello map[string]string
	require.NoError(t, conn.ReadJSON(&hello))

	h.Cleanup()
	assert.Equal(t, 0, b.SubscriberCount())

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
