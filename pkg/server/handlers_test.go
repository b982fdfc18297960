package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference"
	"github.com/go-go-golems/parley/pkg/store"
)

type fakeClient struct {
	completion *inference.Completion
	err        error
}

func (f *fakeClient) Complete(
	_ context.Context,
	_ []conversation.Message,
	_ conversation.GenerationSettings,
) (*inference.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

func newTestServer(client inference.Client) (*Server, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return New(s, client, ":0"), s
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func createConversation(t *testing.T, srv *Server, name string, params map[string]interface{}) conversation.Conversation {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/conversation", map[string]interface{}{
		"name":   name,
		"params": params,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var conv conversation.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	return conv
}

func TestCreateConversationReturnsFullRecord(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	conv := createConversation(t, srv, "t1", map[string]interface{}{"model": "gpt-4o"})

	assert.False(t, conv.ID.IsZero())
	assert.Equal(t, "t1", conv.Name)
	assert.Equal(t, "gpt-4o", conv.Params.Model)
	assert.Equal(t, 0, conv.Tokens)
	assert.Empty(t, conv.Messages)
}

func TestCreateConversationRequiresName(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	rec := doJSON(t, srv, http.MethodPost, "/conversation", map[string]interface{}{
		"params": map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is required")
}

func TestListConversationsReturnsSummaries(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	createConversation(t, srv, "a", nil)
	createConversation(t, srv, "b", nil)

	rec := doJSON(t, srv, http.MethodGet, "/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []conversation.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	assert.Len(t, summaries, 2)
}

func TestGetConversationUnknownIDIs404(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	rec := doJSON(t, srv, http.MethodGet, "/conversations/"+primitive.NewObjectID().Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetConversationMalformedIDIs400(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	rec := doJSON(t, srv, http.MethodGet, "/conversations/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateConversationReplacesNameAndParams(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	conv := createConversation(t, srv, "before", nil)

	rec := doJSON(t, srv, http.MethodPut, "/conversations/"+conv.ID.Hex(), map[string]interface{}{
		"name":   "after",
		"params": map[string]interface{}{"temperature": 0.2},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated conversation.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "after", updated.Name)
	require.NotNil(t, updated.Params.Temperature)
	assert.InDelta(t, 0.2, *updated.Params.Temperature, 1e-9)
}

func TestDeleteConversationThenGetIs404(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	conv := createConversation(t, srv, "t1", nil)

	rec := doJSON(t, srv, http.MethodDelete, "/conversations/"+conv.ID.Hex(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/conversations/"+conv.ID.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/conversations/"+conv.ID.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryAppendsTurnsAndReportsResponse(t *testing.T) {
	srv, st := newTestServer(&fakeClient{
		completion: &inference.Completion{
			Content: "hello",
			Usage:   &inference.Usage{TotalTokens: 5},
		},
	})

	conv := createConversation(t, srv, "t1", nil)

	rec := doJSON(t, srv, http.MethodPost, "/queries", map[string]interface{}{
		"id": conv.ID.Hex(),
		"message": map[string]string{
			"role":    "user",
			"content": "hi",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Response     string                    `json:"response"`
		Conversation conversation.Conversation `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "hello", result.Response)
	require.Len(t, result.Conversation.Messages, 2)
	assert.Equal(t, "hi", result.Conversation.Messages[0].Content)
	assert.Equal(t, "hello", result.Conversation.Messages[1].Content)
	assert.Equal(t, 5, result.Conversation.Tokens)

	stored, err := st.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 2)
	assert.Equal(t, 5, stored.Tokens)
}

func TestQueryUnknownConversationIs404(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{
		completion: &inference.Completion{Content: "hello"},
	})

	rec := doJSON(t, srv, http.MethodPost, "/queries", map[string]interface{}{
		"id": primitive.NewObjectID().Hex(),
		"message": map[string]string{
			"role":    "user",
			"content": "hi",
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryRequiresRoleAndContent(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	conv := createConversation(t, srv, "t1", nil)

	for _, message := range []map[string]string{
		{"role": "user"},
		{"content": "hi"},
		{},
	} {
		rec := doJSON(t, srv, http.MethodPost, "/queries", map[string]interface{}{
			"id":      conv.ID.Hex(),
			"message": message,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, fmt.Sprintf("message: %v", message))
	}
}

func TestQueryAcceptsEmptyContent(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{
		completion: &inference.Completion{Content: "still answered"},
	})

	conv := createConversation(t, srv, "t1", nil)

	rec := doJSON(t, srv, http.MethodPost, "/queries", map[string]interface{}{
		"id": conv.ID.Hex(),
		"message": map[string]string{
			"role":    "user",
			"content": "",
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryModelFailureIs502AndStateUntouched(t *testing.T) {
	srv, st := newTestServer(&fakeClient{err: errors.New("provider down")})

	conv := createConversation(t, srv, "t1", nil)

	rec := doJSON(t, srv, http.MethodPost, "/queries", map[string]interface{}{
		"id": conv.ID.Hex(),
		"message": map[string]string{
			"role":    "user",
			"content": "hi",
		},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "provider down")

	stored, err := st.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
	assert.Equal(t, 0, stored.Tokens)
}

func TestHealthReportsOK(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestConversationIDSerializesAsString(t *testing.T) {
	srv, _ := newTestServer(&fakeClient{})

	conv := createConversation(t, srv, "t1", nil)

	rec := doJSON(t, srv, http.MethodGet, "/conversations/"+conv.ID.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	id, ok := raw["id"].(string)
	require.True(t, ok)
	assert.Equal(t, conv.ID.Hex(), id)
}
