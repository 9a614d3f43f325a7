package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	path   string
	body   map[string]any
}

func newAPI(t *testing.T) (*httptest.Server, *[]call) {
	t.Helper()
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{method: r.Method, path: r.URL.Path}
		if r.Body != nil && r.ContentLength != 0 {
			_ = json.NewDecoder(r.Body).Decode(&c.body)
		}
		calls = append(calls, c)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRunCommands(t *testing.T) {
	tests := []struct {
		args   []string
		method string
		path   string
		body   map[string]any
	}{
		{[]string{"status"}, http.MethodGet, "/api/status", nil},
		{[]string{"phones"}, http.MethodGet, "/api/phones", nil},
		{[]string{"touch", "10", "470"}, http.MethodPost, "/api/touch/one", map[string]any{"x": 10.0, "y": 470.0}},
		{[]string{"touch", "500", "100", "300", "50"}, http.MethodPost, "/api/touch/two",
			map[string]any{"x1": 500.0, "y1": 100.0, "x2": 300.0, "y2": 50.0}},
		{[]string{"throttle", "0.3"}, http.MethodPost, "/api/tuning", map[string]any{"throttle": 0.3}},
		{[]string{"mode", "laser"}, http.MethodPost, "/api/tuning", map[string]any{"mode": "laser"}},
		{[]string{"resize", "640", "360"}, http.MethodPost, "/api/resize", map[string]any{"width": 640.0, "height": 360.0}},
		{[]string{"orient", "-30", "0", "90"}, http.MethodPost, "/api/orientation/phone",
			map[string]any{"pitch": -30.0, "roll": 0.0, "yaw": 90.0}},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			srv, calls := newAPI(t)
			out, err := run(context.Background(), srv.URL+"/api", tt.args)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"ok": true}, out)

			require.Len(t, *calls, 1)
			got := (*calls)[0]
			assert.Equal(t, tt.method, got.method)
			assert.Equal(t, tt.path, got.path)
			assert.Equal(t, tt.body, got.body)
		})
	}
}

func TestRunRejectsBadArgs(t *testing.T) {
	srv, calls := newAPI(t)
	for _, args := range [][]string{
		{"touch", "1"},
		{"touch", "a", "b"},
		{"orient", "1", "2"},
		{"throttle"},
		{"resize", "640"},
		{"dance"},
	} {
		_, err := run(context.Background(), srv.URL+"/api", args)
		assert.Error(t, err, "%v", args)
	}
	assert.Empty(t, *calls)
}
