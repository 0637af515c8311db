package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgo/rotativos/api/internal/middleware"
	"github.com/forgo/rotativos/api/internal/model"
)

type actor struct {
	userID string
	admin  bool
}

var (
	member = actor{userID: "user:7"}
	admin  = actor{userID: "user:1", admin: true}
)

func makeJSONRequest(method, path string, body interface{}) *http.Request {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// serve routes req through a mux holding only pattern, as the actor
func serve(pattern string, h http.HandlerFunc, as actor, req *http.Request) *httptest.ResponseRecorder {
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, as.userID)
	if as.admin {
		ctx = context.WithValue(ctx, middleware.RoleKey, middleware.RoleAdmin)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req.WithContext(ctx))
	return rr
}

func parseErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) *model.ProblemDetails {
	t.Helper()
	require.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/problem+json"))
	var problem model.ProblemDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	return &problem
}

// parseData decodes the data envelope into v
func parseData(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) map[string]string {
	t.Helper()
	var envelope struct {
		Data  json.RawMessage   `json:"data"`
		Links map[string]string `json:"_links"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
	return envelope.Links
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }
