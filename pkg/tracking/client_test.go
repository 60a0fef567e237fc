package tracking_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promora-go-api/internal/attribution"
	"github.com/noah-isme/promora-go-api/pkg/tracking"
)

func TestClientPostsEventAsJSON(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, tracking.InteractionsPath, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "corr-7", r.Header.Get("X-Correlation-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	correlation := func(context.Context) string { return "corr-7" }
	client, err := tracking.New(tracking.Config{
		BaseURL:     server.URL + "/",
		Timeout:     time.Second,
		Logger:      zerolog.Nop(),
		Correlation: correlation,
	})
	require.NoError(t, err)

	line := 10
	result := client.Dispatch(context.Background(), attribution.TrackEvent{
		SessionID:      "session-1",
		EventType:      attribution.EventCodePastedFromAI,
		CodeSnippet:    "foo();",
		CodeLineNumber: &line,
		Metadata:       map[string]interface{}{"lineCount": 1},
	})

	require.Equal(t, attribution.DispatchSent, result.Status)
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, "session-1", received["sessionId"])
	require.Equal(t, "code_pasted_from_ai", received["eventType"])
	require.Equal(t, float64(10), received["codeLineNumber"])
}

func TestClientReportsNon2xxAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := tracking.New(tracking.Config{BaseURL: server.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	result := client.Dispatch(context.Background(), attribution.TrackEvent{SessionID: "s", EventType: attribution.EventCodeModified})
	require.Equal(t, attribution.DispatchFailed, result.Status)
	require.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
	require.Error(t, result.Err)
}

func TestClientReportsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := tracking.New(tracking.Config{BaseURL: url, Timeout: 200 * time.Millisecond, Logger: zerolog.Nop()})
	require.NoError(t, err)

	result := client.Dispatch(context.Background(), attribution.TrackEvent{SessionID: "s", EventType: attribution.EventCodeModified})
	require.Equal(t, attribution.DispatchFailed, result.Status)
	require.Zero(t, result.StatusCode)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := tracking.New(tracking.Config{})
	require.Error(t, err)
}
