package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/pokemon-memory-game/game/config"
	"github.com/wricardo/pokemon-memory-game/game/service"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}

	expectedAppName := "Pokemon Memory Game Server"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	settings, err := config.LoadSettings("")
	if err != nil {
		t.Fatalf("Failed to load default settings: %v", err)
	}
	settings.Server.ConfigDir = "configs"
	settings.Leaderboard.Backend = "memory"
	settings.Assets.Offline = true
	return settings
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a, err := newApp(ctx, testSettings(t), discardLogger())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestApplyFlagOverrides(t *testing.T) {
	origPort, origHost, origDir, origBackend, origDebug, origOffline := *port, *host, *configDir, *backend, *debug, *offline
	defer func() {
		*port, *host, *configDir, *backend, *debug, *offline = origPort, origHost, origDir, origBackend, origDebug, origOffline
	}()

	settings := testSettings(t)
	settings.Assets.Offline = false

	*port = 9090
	*host = "0.0.0.0"
	*configDir = "presets"
	*backend = "file"
	*debug = true
	*offline = true

	applyFlagOverrides(settings)

	if settings.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", settings.Server.Port)
	}
	if settings.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", settings.Server.Host)
	}
	if settings.Server.ConfigDir != "presets" {
		t.Errorf("ConfigDir = %q, want presets", settings.Server.ConfigDir)
	}
	if settings.Leaderboard.Backend != "file" {
		t.Errorf("Backend = %q, want file", settings.Leaderboard.Backend)
	}
	if settings.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", settings.Server.LogLevel)
	}
	if !settings.Assets.Offline {
		t.Error("Offline should be set")
	}
}

func TestApplyFlagOverrides_UnsetFlagsKeepSettings(t *testing.T) {
	settings := testSettings(t)
	before := *settings

	applyFlagOverrides(settings)

	if *settings != before {
		t.Errorf("Settings changed without flags: %+v", settings)
	}
}

func TestNewApp(t *testing.T) {
	a := newTestApp(t)

	if a.service == nil {
		t.Fatal("Expected game service to be initialized")
	}
	if a.hub == nil || a.limiter == nil || a.registry == nil {
		t.Fatal("Expected hub, limiter and registry to be initialized")
	}

	session, err := a.service.CreateSession(context.Background(), service.CreateOptions{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if a.sessions.Count() != 1 {
		t.Errorf("Session count = %d, want 1", a.sessions.Count())
	}
	if session.GameState == nil || session.GameState.TotalPairs == 0 {
		t.Errorf("Expected a dealt board, got %+v", session.GameState)
	}
}

func TestNewApp_InvalidConfigDir(t *testing.T) {
	settings := testSettings(t)
	settings.Server.ConfigDir = "/non/existent/path"

	if _, err := newApp(context.Background(), settings, discardLogger()); err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestNewApp_InvalidSettings(t *testing.T) {
	settings := testSettings(t)
	settings.Leaderboard.Backend = "redis"

	if _, err := newApp(context.Background(), settings, discardLogger()); err == nil {
		t.Error("Expected error for unknown leaderboard backend")
	}
}

func TestOpenLeaderboardStore(t *testing.T) {
	ctx := context.Background()

	store, closer, err := openLeaderboardStore(ctx, config.LeaderboardSettings{Backend: "memory"}, discardLogger())
	if err != nil || store == nil {
		t.Fatalf("memory backend: store=%v err=%v", store, err)
	}
	if closer != nil {
		t.Error("memory backend should have no closer")
	}

	store, _, err = openLeaderboardStore(ctx, config.LeaderboardSettings{Backend: "file", Dir: t.TempDir()}, discardLogger())
	if err != nil || store == nil {
		t.Fatalf("file backend: store=%v err=%v", store, err)
	}

	if _, _, err := openLeaderboardStore(ctx, config.LeaderboardSettings{Backend: "redis"}, discardLogger()); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestHandler_RoutesAPIAndMetrics(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.handler("http://localhost:0"))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", strings.NewReader(`{"grid_size": 2}`))
	if err != nil {
		t.Fatalf("POST /api/sessions failed: %v", err)
	}
	var created service.SessionInfo
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/sessions status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if created.ID == "" {
		t.Error("Expected a session ID")
	}

	resp, err = http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("Expected Go runtime metrics in /metrics output")
	}
	if !strings.Contains(string(body), "memory_games_started_total") {
		t.Error("Expected game metrics in /metrics output")
	}
}

func TestHandler_MCPRejectsGet(t *testing.T) {
	a := newTestApp(t)
	w := httptest.NewRecorder()

	a.handler("http://localhost:0").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mcp", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /mcp status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestExternalAPIAvailable(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	if !externalAPIAvailable(healthy.URL) {
		t.Error("Expected healthy server to be detected")
	}

	broken := httptest.NewServer(http.NotFoundHandler())
	defer broken.Close()
	if externalAPIAvailable(broken.URL) {
		t.Error("Expected server without health endpoint to be rejected")
	}
}

func TestIsStdioMode(t *testing.T) {
	for _, mode := range []string{"stdio-mcp", "mcp-stdio", "mcp"} {
		if !isStdioMode(mode) {
			t.Errorf("isStdioMode(%q) = false, want true", mode)
		}
	}
	for _, mode := range []string{"server", "http", ""} {
		if isStdioMode(mode) {
			t.Errorf("isStdioMode(%q) = true, want false", mode)
		}
	}
}

func TestNewApp_DefaultConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := testSettings(t)
	settings.Server.DefaultConfig = "medium"
	a, err := newApp(ctx, settings, discardLogger())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()

	info, err := a.service.CreateSession(ctx, service.CreateOptions{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if info.GameState.GridSize != 6 {
		t.Errorf("Expected the medium preset, got %dx%d", info.GameState.GridSize, info.GameState.GridSize)
	}

	settings = testSettings(t)
	settings.Server.DefaultConfig = "missing"
	if _, err := newApp(ctx, settings, discardLogger()); err == nil {
		t.Error("Expected error for an unknown default preset")
	}
}

func TestReloadPresets(t *testing.T) {
	dir := t.TempDir()
	writePreset := func(description string) {
		t.Helper()
		data := `{"name": "Easy", "description": "` + description + `", "grid_size": 4, "player_count": 1}`
		if err := os.WriteFile(filepath.Join(dir, "easy.json"), []byte(data), 0644); err != nil {
			t.Fatalf("Failed to write preset: %v", err)
		}
	}
	writePreset("before")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	settings := testSettings(t)
	settings.Server.ConfigDir = dir
	settings.Server.DefaultConfig = "easy"
	a, err := newApp(ctx, settings, discardLogger())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()

	if cfg, _ := a.service.LoadConfig(ctx, "easy"); cfg.Description != "before" {
		t.Fatalf("Unexpected description %q", cfg.Description)
	}

	writePreset("after")
	if err := a.reloadPresets(); err != nil {
		t.Fatalf("reloadPresets failed: %v", err)
	}
	if cfg, _ := a.service.LoadConfig(ctx, "easy"); cfg.Description != "after" {
		t.Errorf("Expected reloaded description, got %q", cfg.Description)
	}
	if def := a.configs.GetDefault(); def.Description != "after" {
		t.Errorf("Expected default to follow the reload, got %q", def.Description)
	}
}
