package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/replychain/internal/database"
	"github.com/vedran77/replychain/internal/domain"
	"github.com/vedran77/replychain/internal/repository/sqlite"
	"github.com/vedran77/replychain/internal/service"
	"github.com/vedran77/replychain/internal/transport/http/middleware"
	"maunium.net/go/mautrix/id"
)

const (
	secret = "handler-secret"
	room   = "!room:example.org"
	alice  = "@alice:example.org"
	bob    = "@bob:example.org"
)

type testServer struct {
	t   *testing.T
	mux *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mux := http.NewServeMux()
	Routes(mux, NewEventHandler(service.NewEventService(sqlite.NewEventRepo(db))), middleware.Auth(secret))
	return &testServer{t: t, mux: mux}
}

func (s *testServer) do(method, path, user, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   user,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+signed)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) send(user, body string, replyTo id.EventID) domain.EventView {
	s.t.Helper()
	payload, err := json.Marshal(service.SendEventInput{Body: body, InReplyTo: replyTo})
	require.NoError(s.t, err)

	rec := s.do(http.MethodPost, "/api/v1/rooms/"+room+"/events", user, string(payload))
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var view domain.EventView
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func (s *testServer) parent(eventID id.EventID) *id.EventID {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/v1/events/"+eventID.String()+"/parent", alice, "")
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp parentResponse
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(s.t, eventID, resp.EventID)
	return resp.ParentEventID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/v1/rooms/"+room+"/events", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEditFlowThroughHTTP(t *testing.T) {
	s := newTestServer(t)

	original := s.send(alice, "> Reply to this message", "")
	reply := s.send(bob, "foo", original.EventID)
	require.NotNil(t, reply.ParentEventID)
	assert.Equal(t, original.EventID, *reply.ParentEventID)

	// edit without a reply field keeps the parent
	rec := s.do(http.MethodPatch, "/api/v1/events/"+reply.EventID.String(), bob, `{"body": "foo bar"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, original.EventID, *s.parent(reply.EventID))

	// explicit null clears it
	rec = s.do(http.MethodPatch, "/api/v1/events/"+reply.EventID.String(), bob, `{"body": "foo bar", "reply": null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, s.parent(reply.EventID))

	var view domain.EventView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Nil(t, view.ParentEventID)
	assert.Equal(t, "foo bar", view.Body)

	// and a new id sets it again
	other := s.send(alice, "other", "")
	rec = s.do(http.MethodPatch, "/api/v1/events/"+reply.EventID.String(), bob, `{"body": "foo bar", "reply": "`+other.EventID.String()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, other.EventID, *s.parent(reply.EventID))
}

func TestListAndChain(t *testing.T) {
	s := newTestServer(t)

	a := s.send(alice, "a", "")
	b := s.send(bob, "b", a.EventID)
	c := s.send(alice, "c", b.EventID)

	rec := s.do(http.MethodGet, "/api/v1/rooms/"+room+"/events?limit=2", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list service.EventListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.True(t, list.HasMore)
	require.Len(t, list.Events, 2)
	assert.Equal(t, b.EventID, list.Events[0].EventID)

	rec = s.do(http.MethodGet, "/api/v1/events/"+c.EventID.String()+"/chain?depth=1", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var chain service.ReplyChainResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chain))
	require.Len(t, chain.Events, 1)
	assert.Equal(t, b.EventID, chain.Events[0].EventID)
	assert.True(t, chain.HasMore)

	rec = s.do(http.MethodGet, "/api/v1/events/"+c.EventID.String()+"/chain?depth=-1", alice, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/rooms/"+room+"/events?before=$missing", alice, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/api/v1/rooms/"+room+"/events?before="+b.EventID.String(), alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Events, 1)
	assert.Equal(t, a.EventID, list.Events[0].EventID)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	msg := s.send(alice, "mine", "")

	rec := s.do(http.MethodGet, "/api/v1/events/$missing", alice, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/api/v1/events/not-an-id", alice, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, rec))

	rec = s.do(http.MethodPatch, "/api/v1/events/"+msg.EventID.String(), bob, `{"body": "hijack"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, "/api/v1/events/"+msg.EventID.String(), alice, `{"body": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/api/v1/rooms/"+room+"/events", alice, `{"body": "x", "in_reply_to": "$missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PARENT_NOT_FOUND", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/api/v1/rooms/not-a-room/events", alice, `{"body": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/rooms/"+room+"/events", alice, `{`)
	assert.Equal(t, "INVALID_JSON", errorCode(t, rec))

	rec = s.do(http.MethodDelete, "/api/v1/events/"+msg.EventID.String(), alice, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPatch, "/api/v1/events/"+msg.EventID.String(), alice, `{"body": "late"}`)
	assert.Equal(t, http.StatusGone, rec.Code)
}
