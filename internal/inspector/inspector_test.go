package inspector

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"sentrajit/internal/optimize"
	"sentrajit/internal/orchestrator"
)

func handlerFunc(s *Server) http.HandlerFunc { return s.handleUpgrade }

func TestBroadcastDeliversEventToConnectedClient(t *testing.T) {
	events := make(chan orchestrator.Event, 1)
	s := New("", events)
	httpSrv := httptest.NewServer(handlerFunc(s))
	defer httpSrv.Close()
	defer s.Stop()
	go s.broadcastLoop()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered with the server")
		}
		time.Sleep(time.Millisecond)
	}

	events <- orchestrator.Event{FunctionID: 7, Kind: "compiled", Level: optimize.O1, Timestamp: time.Now()}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), `"function_id":7`)
	require.Contains(t, string(msg), `"kind":"compiled"`)
}

func TestClientCountDropsAfterDisconnect(t *testing.T) {
	events := make(chan orchestrator.Event, 1)
	s := New("", events)
	httpSrv := httptest.NewServer(handlerFunc(s))
	defer httpSrv.Close()
	defer s.Stop()
	go s.broadcastLoop()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered with the server")
		}
		time.Sleep(time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for s.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client was never reaped after disconnect")
		}
		time.Sleep(time.Millisecond)
	}
}
