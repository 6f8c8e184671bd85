package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/workflows/0001_slack.json", nil)
	req = mux.SetURLVars(req, map[string]string{"filename": "0001_slack.json"})

	val, err := ParsePathString(req, "filename")
	require.NoError(t, err)
	assert.Equal(t, "0001_slack.json", val)

	_, err = ParsePathString(req, "missing")
	assert.Error(t, err)
}

func TestParsePathStringOrError(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/workflows/", nil)
	w := httptest.NewRecorder()

	_, ok := ParsePathStringOrError(w, req, "filename")

	assert.False(t, ok)
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "filename")
}

func TestParseQueryInt(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		want        int
		expectError bool
	}{
		{name: "present", url: "/?page=3", want: 3},
		{name: "absent uses default", url: "/", want: 1},
		{name: "blank uses default", url: "/?page=%20", want: 1},
		{name: "negative passes through", url: "/?page=-2", want: -2},
		{name: "not a number", url: "/?page=two", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			got, err := ParseQueryInt(req, "page", 1)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/?q=%20slack%20&trigger=", nil)

	assert.Equal(t, "slack", ParseQueryString(req, "q", ""))
	assert.Equal(t, "all", ParseQueryString(req, "trigger", "all"))
}

func TestParseQueryBool(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		want        bool
		expectError bool
	}{
		{name: "true", url: "/?active_only=true", want: true},
		{name: "one", url: "/?active_only=1", want: true},
		{name: "false", url: "/?active_only=false", want: false},
		{name: "absent", url: "/", want: false},
		{name: "garbage", url: "/?active_only=maybe", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			got, err := ParseQueryBool(req, "active_only", false)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
