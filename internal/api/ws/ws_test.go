package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestWS(t *testing.T) {
	initWS("*")

	HandleFunc("echo", func(tr *Transport, msg *Message) error {
		return tr.Write([]byte(msg.String()))
	})
	HandleFunc("fail", func(tr *Transport, msg *Message) error {
		return http.ErrNotSupported
	})

	closed := make(chan struct{})
	HandleFunc("watch", func(tr *Transport, msg *Message) error {
		tr.OnClose(func() { close(closed) })
		return tr.Write(&Message{Type: "ready"})
	})

	srv := httptest.NewServer(http.HandlerFunc(apiWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Nil(t, err)

	require.Nil(t, conn.WriteJSON(map[string]any{"type": "echo", "value": "frame"}))
	typ, b, err := conn.ReadMessage()
	require.Nil(t, err)
	require.Equal(t, websocket.BinaryMessage, typ)
	require.Equal(t, "frame", string(b))

	require.Nil(t, conn.WriteJSON(map[string]any{"type": "fail"}))
	var msg Message
	require.Nil(t, conn.ReadJSON(&msg))
	require.Equal(t, "error", msg.Type)
	require.Contains(t, msg.Value, "fail: ")

	require.Nil(t, conn.WriteJSON(map[string]any{"type": "watch"}))
	require.Nil(t, conn.ReadJSON(&msg))
	require.Equal(t, "ready", msg.Type)

	require.Nil(t, conn.Close())

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "transport not closed")
	}
}

func TestTransportOnClose(t *testing.T) {
	tr := &Transport{}
	var n int
	tr.OnClose(func() { n++ })
	tr.Close()
	require.True(t, tr.Closed())
	require.Equal(t, 1, n)

	// closed transport runs callback at once
	tr.OnClose(func() { n++ })
	require.Equal(t, 2, n)
}
