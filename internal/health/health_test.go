package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cuepoint/agent/internal/config"
)

func TestCheckAllHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/current-video" || r.URL.Query().Get("videoId") != "1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"id":1,"url":"/v1.mp4"}`))
	}))
	defer srv.Close()

	var cfg config.Config
	cfg.Remote.BaseURL = srv.URL
	cfg.Guided.InitialVideoID = 1
	cfg.Surface.TokenSecret = "s"

	st := CheckAll(context.Background(), cfg)
	if !st.OK || len(st.Checks) != 2 {
		t.Fatalf("expected healthy, got %s", st)
	}
}

func TestCheckAllRemoteDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var cfg config.Config
	cfg.Remote.BaseURL = srv.URL
	cfg.Guided.InitialVideoID = 1

	st := CheckAll(context.Background(), cfg)
	if st.OK {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(st.String(), "unexpected status 503") || !strings.Contains(st.String(), "SURFACE_TOKEN_SECRET") {
		t.Fatalf("unexpected report:\n%s", st)
	}
}
