package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClaims(claims *config.UserClaims, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), config.UserClaimKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWSHandler_JoinAndReceive(t *testing.T) {
	hub := NewHub(16, logger.NewNop())
	claims := &config.UserClaims{UserID: uuid.New(), TenantID: uuid.New(), DisplayName: "viewer"}
	srv := httptest.NewServer(withClaims(claims, NewWSHandler(hub, logger.NewNop())))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	lot, auction := uuid.New(), uuid.New()
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "join", Scope: ScopeLot, ID: lot.String()}))
	ack := readMessage(t, conn)
	assert.Equal(t, string(MsgJoined), ack["type"])

	require.Eventually(t, func() bool {
		return hub.GroupSize(claims.TenantID, ScopeLot, lot) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Deliver(envelope(claims.TenantID, lot, auction, MsgBid, 1))
	msg := readMessage(t, conn)
	assert.Equal(t, string(MsgBid), msg["type"])
	data := msg["data"].(map[string]any)
	assert.Equal(t, lot.String(), data["lot_id"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "leave", Scope: ScopeLot, ID: lot.String()}))
	assert.Equal(t, string(MsgLeft), readMessage(t, conn)["type"])
	assert.Equal(t, 0, hub.GroupSize(claims.TenantID, ScopeLot, lot))
}

func TestWSHandler_RejectsBadMessages(t *testing.T) {
	hub := NewHub(16, logger.NewNop())
	claims := &config.UserClaims{UserID: uuid.New(), TenantID: uuid.New()}
	srv := httptest.NewServer(withClaims(claims, NewWSHandler(hub, logger.NewNop())))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, string(MsgError), readMessage(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "join", Scope: "room", ID: uuid.NewString()}))
	assert.Equal(t, string(MsgError), readMessage(t, conn)["type"])
}

func TestWSHandler_RequiresClaims(t *testing.T) {
	srv := httptest.NewServer(NewWSHandler(NewHub(1, logger.NewNop()), logger.NewNop()))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
