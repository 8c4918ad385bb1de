package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_DecodesAndReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/downloads":
			assert.Equal(t, "queued", r.URL.Query().Get("status"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "a1"}})
		case "/api/v1/downloads/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"download not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}
	}))
	defer srv.Close()

	api := newAPIClient(srv.URL + "/")

	var list []map[string]string
	require.NoError(t, api.get("/api/v1/downloads", url.Values{"status": {"queued"}}, &list))
	assert.Equal(t, "a1", list[0]["id"])

	err := api.get("/api/v1/downloads/missing", nil, nil)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "download not found", apiErr.Message)

	err = api.get("/other", nil, nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.Message)
}

func TestAPIClient_WebsocketURL(t *testing.T) {
	ws, err := newAPIClient("http://localhost:8090").wsURL("/api/v1/ws/progress", url.Values{"id": {"x"}})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8090/api/v1/ws/progress?id=x", ws)

	ws, err = newAPIClient("https://vidgrab.example").wsURL("/api/v1/ws/progress", nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://vidgrab.example/api/v1/ws/progress", ws)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "60.0 MiB", formatBytes(60*1024*1024))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "short", truncate("short", 10))
}
