package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"relay-lab/auth"
	"relay-lab/protocol"
	"relay-lab/runtime"
)

const readWait = 2 * time.Second

func newRelayServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry, protocol.NewCommandValidator(1024), nil, nil, 64)
	issuer := auth.NewTokenIssuer([]byte("test-signing-key"), time.Hour)
	server := NewServer(log, router, NewConnTable(), issuer, 64, 65536)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dialRelay(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// readUntil reads frames until one carries the wanted tag, failing on a
// closed connection or an exceeded deadline.
func readUntil(t *testing.T, ws *websocket.Conn, tag string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(readWait)))
	for {
		_, frame, err := ws.ReadMessage()
		require.NoError(t, err, "connection dropped while waiting for %q", tag)

		var evt map[string]any
		require.NoError(t, json.Unmarshal(frame, &evt))
		if evt["tag"] == tag {
			return evt
		}
	}
}

func sendFrame(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestServer_Close_Delivers_SessionClosed_Before_The_Drop(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t)

	// Given a hosted session with one member
	host := dialRelay(t, ts)
	sendFrame(t, host, `{"tag":"create","ownerToken":"owner-1"}`)
	created := readUntil(t, host, "created")
	sessionID := created["sessionId"].(string)

	member := dialRelay(t, ts)
	sendFrame(t, member, fmt.Sprintf(`{"tag":"join","sessionId":%q,"name":"ana"}`, sessionID))
	readUntil(t, member, "joined")

	// When the host closes the session
	sendFrame(t, host, `{"tag":"close"}`)

	// Then the member hears about it before its connection is torn down
	readUntil(t, member, "sessionClosed")

	// And the relay then drops the member cleanly
	req.NoError(member.SetReadDeadline(time.Now().Add(readWait)))
	_, _, err := member.ReadMessage()
	req.Error(err)
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"expected a normal close handshake, got: %v", err)

	// The host connection stays open and drops back to unbound
	readUntil(t, host, "sessionClosed")
	sendFrame(t, host, `{"tag":"create","ownerToken":"owner-2"}`)
	readUntil(t, host, "created")
}

func TestServer_Host_Dropping_Notifies_Members_Before_The_Drop(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t)

	host := dialRelay(t, ts)
	sendFrame(t, host, `{"tag":"create","ownerToken":"owner-1"}`)
	created := readUntil(t, host, "created")
	sessionID := created["sessionId"].(string)

	member := dialRelay(t, ts)
	sendFrame(t, member, fmt.Sprintf(`{"tag":"join","sessionId":%q,"name":"ana"}`, sessionID))
	readUntil(t, member, "joined")

	// When the host connection dies without an explicit close
	req.NoError(host.Close())

	// Then the member still receives the session end before its own drop
	readUntil(t, member, "sessionClosed")

	req.NoError(member.SetReadDeadline(time.Now().Add(readWait)))
	_, _, err := member.ReadMessage()
	req.Error(err)
}

func TestServer_Member_Leave_Keeps_Its_Connection_Open(t *testing.T) {
	ts := newRelayServer(t)

	host := dialRelay(t, ts)
	sendFrame(t, host, `{"tag":"create","ownerToken":"owner-1"}`)
	created := readUntil(t, host, "created")
	sessionID := created["sessionId"].(string)

	member := dialRelay(t, ts)
	sendFrame(t, member, fmt.Sprintf(`{"tag":"join","sessionId":%q,"name":"ana"}`, sessionID))
	readUntil(t, member, "joined")

	// When the member leaves voluntarily
	sendFrame(t, member, `{"tag":"leave"}`)
	readUntil(t, host, "memberLeft")

	// Then the connection survives and may join again
	sendFrame(t, member, fmt.Sprintf(`{"tag":"join","sessionId":%q,"name":"ana"}`, sessionID))
	readUntil(t, member, "joined")
}

func TestServer_Token_Endpoint_Mints_Verifiable_Tokens(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t)

	resp, err := http.Get(ts.URL + "/token")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var body map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.NotEmpty(body["ownerToken"])

	issuer := auth.NewTokenIssuer([]byte("test-signing-key"), time.Hour)
	req.NoError(issuer.Verify(body["ownerToken"]))
}
