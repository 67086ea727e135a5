package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*httptest.Server, *[]NTFYMessage) {
	t.Helper()

	var received []NTFYMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg NTFYMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		received = append(received, msg)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestSendAlert_RateLimitsSameType(t *testing.T) {
	srv, received := testServer(t)

	c := NewNTFYClient(NTFYConfig{
		ServerURL: srv.URL,
		Topic:     "routemap-test",
		Enabled:   true,
	})

	require.NoError(t, c.AlertRefreshComplete("v1", 10, 5))
	require.NoError(t, c.AlertRefreshComplete("v2", 11, 5)) // suppressed
	require.NoError(t, c.AlertRefreshFailed("manual", assert.AnError))

	require.Len(t, *received, 2)
	assert.Equal(t, "Dataset Refreshed", (*received)[0].Title)
	assert.Contains(t, (*received)[0].Message, "v1")
	assert.Equal(t, "Dataset Refresh Failed", (*received)[1].Title)
}

func TestSendAlert_DisabledIsNoop(t *testing.T) {
	srv, received := testServer(t)

	c := NewNTFYClient(NTFYConfig{ServerURL: srv.URL, Topic: "routemap-test"})
	require.NoError(t, c.AlertRefreshComplete("v1", 10, 5))
	assert.Empty(t, *received)
}
