package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"churn-dashboard/internal/models"
	"churn-dashboard/internal/services"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	churn := services.NewChurn()
	require.NoError(t, churn.SetData([]models.Customer{
		{Geography: "France", Gender: "Female", Age: 25, IsActiveMember: true, Exited: true},
		{Geography: "France", Gender: "Male", Age: 45, IsActiveMember: false, Exited: false},
		{Geography: "Spain", Gender: "Female", Age: 61, IsActiveMember: false, Exited: true},
		{Geography: "Spain", Gender: "Male", Age: 33, IsActiveMember: true, Exited: false},
	}))
	return NewServer(churn, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path        string
		contentType string
	}{
		{"/", "text/html"},
		{"/health", "application/json"},
		{"/admin/stats", "application/json"},
		{"/api/summary", "application/json"},
		{"/api/gender-exits", "application/json"},
		{"/api/activity-exits", "application/json"},
		{"/api/options", "application/json"},
		{"/api/geography?gender=Female", "application/json"},
		{"/sse/summary", "text/event-stream"},
		{"/sse/geography", "text/event-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), tt.contentType)

			if tt.contentType == "application/json" {
				var result map[string]any
				require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
				assert.Equal(t, true, result["success"])
			}
		})
	}
}

func TestServer_ErrorHandling(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/api/geography", http.StatusMethodNotAllowed},
		{http.MethodPut, "/", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
		{http.MethodGet, "/api/geography?age=abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestServer_UnfilteredGeographyMatchesFullAggregation(t *testing.T) {
	srv := newTestServer(t)

	fetch := func(query string) string {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/geography"+query, nil))
		require.Equal(t, http.StatusOK, w.Code)
		return w.Body.String()
	}

	assert.JSONEq(t, fetch(""), fetch("?gender=All&activity=All&age=All"))
	assert.True(t, strings.Contains(fetch(""), `"rate":0.5`))
}

func TestGracefulServer_ShutdownRunsHooks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	httpServer := &http.Server{Handler: newTestServer(t)}
	gs := NewGracefulServer(httpServer, logger, 5*time.Second)

	var ran atomic.Int32
	gs.RegisterShutdownHook("first", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	gs.RegisterShutdownHook("failing", func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("boom")
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failing")
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.EqualValues(t, 2, ran.Load())

	http.DefaultClient.CloseIdleConnections()
}
