package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"myswing/internal/config"
	"myswing/internal/swing"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// fakeBackend answers sign-in, the analysis function and analysis reads.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/token":
			writeJSON(w, 200, map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"expires_in":    3600,
				"user":          map[string]string{"id": "user-1", "email": "golfer@example.com"},
			})
		case r.URL.Path == "/functions/v1/analyze-swing":
			writeJSON(w, 200, map[string]string{"job_id": "job-1", "status": "completed", "analysis_id": "an-1"})
		case r.URL.Path == "/rest/v1/analyses" && r.URL.Query().Get("id") == "eq.an-1":
			writeJSON(w, 200, []map[string]any{{
				"id":         "an-1",
				"user_id":    "user-1",
				"video_path": "swings/user-1/a.mp4",
				"scores":     map[string]float64{"overall": 78},
			}})
		case r.URL.Path == "/rest/v1/analyses":
			writeJSON(w, 200, []map[string]any{})
		default:
			writeJSON(w, 404, map[string]string{"message": "no route " + r.URL.Path})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig("device-1", base)
	cfg.Backend.URL = backendURL
	cfg.Storage = config.StorageConfig{Type: "memory"}
	cfg.KVStore = config.KVStoreConfig{Type: "memory"}
	cfg.Encoder = config.EncoderConfig{Type: "passthrough", TempDir: filepath.Join(base, "tmp")}
	cfg.Credentials = config.CredentialsConfig{Type: "none"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := NewApp(context.Background(), cfg, Options{Operation: "Test"})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func writeVideo(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewApp_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{name: "missing backend url", mutate: func(cfg *config.Config) { cfg.Backend.URL = "" }},
		{name: "unknown kv store", mutate: func(cfg *config.Config) { cfg.KVStore.Type = "redis" }},
		{name: "unknown encoder", mutate: func(cfg *config.Config) { cfg.Encoder.Type = "gstreamer" }},
		{name: "unknown storage", mutate: func(cfg *config.Config) { cfg.Storage.Type = "ftp" }},
		{name: "unknown credentials", mutate: func(cfg *config.Config) { cfg.Credentials.Type = "keyring" }},
		{name: "unsupported backend scheme", mutate: func(cfg *config.Config) { cfg.Backend.URL = "ftp://example.com" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "http://127.0.0.1:1")
			tt.mutate(cfg)
			a, err := NewApp(context.Background(), cfg, Options{})
			if err == nil {
				a.Close()
				t.Fatal("NewApp() expected error")
			}
		})
	}
}

func TestApp_AnalyzeSync(t *testing.T) {
	srv := fakeBackend(t)
	a := newTestApp(t, testConfig(t, srv.URL))
	ctx := context.Background()

	if _, err := a.SignIn(ctx, " golfer@example.com ", "secret", false); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if s := a.Session(); s == nil || s.User.ID != "user-1" {
		t.Fatalf("Session() = %+v", s)
	}

	video := writeVideo(t, t.TempDir(), "swing.mp4", 64*1024)
	result := a.Analyze(ctx, swing.Request{VideoPath: video, Context: swing.SwingContext{Club: "driver"}})
	if !result.Success {
		t.Fatalf("Analyze() failed at %s: %v", result.Stage, result.Err)
	}
	if !result.Sync || result.AnalysisID != "an-1" {
		t.Errorf("result = %+v, want sync an-1", result)
	}
	if !strings.HasPrefix(result.StorageKey, "swings/user-1/") {
		t.Errorf("StorageKey = %q", result.StorageKey)
	}

	an, err := a.GetAnalysis(ctx, result.AnalysisID)
	if err != nil {
		t.Fatalf("GetAnalysis() error = %v", err)
	}
	if an.Scores.Overall != 78 {
		t.Errorf("Overall = %v, want 78", an.Scores.Overall)
	}

	runs, err := a.Runs(10)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Status != swing.RunCompleted || runs[0].AnalysisID != "an-1" {
		t.Errorf("Runs() = %+v", runs)
	}
}

func TestApp_AnalyzeSignedOut(t *testing.T) {
	a := newTestApp(t, testConfig(t, "http://127.0.0.1:1"))

	video := writeVideo(t, t.TempDir(), "swing.mp4", 64*1024)
	result := a.Analyze(context.Background(), swing.Request{VideoPath: video})
	if result.Success {
		t.Fatal("Analyze() succeeded without a session")
	}
	if result.Stage != swing.StageUpload || result.Err.Kind != swing.KindPermissionDenied {
		t.Errorf("failed at %s with %v, want upload PermissionDenied", result.Stage, result.Err)
	}
	if !a.op.Failed() {
		t.Error("operation not marked failed")
	}
}

func TestApp_LibraryRequiresSession(t *testing.T) {
	a := newTestApp(t, testConfig(t, "http://127.0.0.1:1"))
	if _, err := a.ListAnalyses(context.Background(), 10); err == nil {
		t.Error("ListAnalyses() expected error when signed out")
	}
	if err := a.SignOut(context.Background()); err != nil {
		t.Errorf("SignOut() while signed out error = %v", err)
	}
}

func TestApp_Scan(t *testing.T) {
	a := newTestApp(t, testConfig(t, "http://127.0.0.1:1"))

	dir := t.TempDir()
	writeVideo(t, dir, "a.mp4", 64*1024)
	writeVideo(t, dir, "b.mov", 0)
	writeVideo(t, dir, "notes.txt", 10)

	entries, err := a.Scan(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Scan() returned %d entries, want 2", len(entries))
	}
	if filepath.Base(entries[0].Path) != "a.mp4" || !entries[0].Validation.CanProceed {
		t.Errorf("a.mp4 = %+v", entries[0].Validation)
	}
	if filepath.Base(entries[1].Path) != "b.mov" || entries[1].Validation.CanProceed {
		t.Errorf("empty b.mov should be rejected: %+v", entries[1].Validation)
	}
	for _, e := range entries {
		if e.Source != swing.SourceGallerySelected {
			t.Errorf("%s source = %s", e.Path, e.Source)
		}
	}
}

func TestApp_ClearCache(t *testing.T) {
	a := newTestApp(t, testConfig(t, "http://127.0.0.1:1"))
	if err := a.cache.Set(swing.CacheProfile, "user-1", map[string]string{"name": "x"}); err != nil {
		t.Fatal(err)
	}
	if err := a.ClearCache(); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	var got map[string]string
	if ok, _ := a.cache.Get(swing.CacheProfile, "user-1", &got); ok {
		t.Error("cache entry survived ClearCache()")
	}
}

func TestApp_CloseWritesOperation(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	a, err := NewApp(context.Background(), cfg, Options{Operation: "ClearCache"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, "myswing.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "operation=ClearCache") || !strings.Contains(string(data), "status=success") {
		t.Errorf("log = %q", data)
	}
}
