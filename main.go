// Command pokemon-memory-game starts the Pokémon memory game server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing the REST API, WebSocket feed, metrics and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from an optional YAML/JSON/TOML file (-settings), MEMORY_*
// environment variables and finally the flags below. Optional ngrok
// tunneling gives easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/time/rate"

	"github.com/wricardo/pokemon-memory-game/api"
	"github.com/wricardo/pokemon-memory-game/game/assets"
	"github.com/wricardo/pokemon-memory-game/game/config"
	"github.com/wricardo/pokemon-memory-game/game/leaderboard"
	"github.com/wricardo/pokemon-memory-game/game/service"
	"github.com/wricardo/pokemon-memory-game/game/session"
	"github.com/wricardo/pokemon-memory-game/metrics"
	"github.com/wricardo/pokemon-memory-game/transport/mcp"
	"github.com/wricardo/pokemon-memory-game/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Pokemon Memory Game Server"
)

// Configuration flags override the settings file and environment.
var (
	settingsFile = flag.String("settings", os.Getenv("MEMORY_SETTINGS"), "Settings file (yaml, json or toml)")
	port         = flag.Int("port", 0, "HTTP server port (overrides settings)")
	host         = flag.String("host", "", "HTTP server host (overrides settings)")
	configDir    = flag.String("config-dir", "", "Directory containing difficulty presets (overrides settings)")
	defaultCfg   = flag.String("default-config", "", "Preset used when a session names none (overrides settings)")
	backend      = flag.String("leaderboard", "", "Leaderboard backend: file, memory or postgres (overrides settings)")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	offline      = flag.Bool("offline", false, "Use placeholder card faces instead of PokeAPI")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, metrics and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                       # Run HTTP server on default port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090            # Run HTTP server on port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -offline -leaderboard memory   # No network, nothing saved\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp             # Run MCP stdio server\n", os.Args[0])
	}
}

// main parses flags, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	flag.Parse()

	// Show version if requested
	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	settings, err := config.LoadSettings(*settingsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(settings)

	// stdout belongs to the MCP protocol in stdio mode
	mode := "server"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}
	var logOut io.Writer = os.Stdout
	if isStdioMode(mode) {
		logOut = os.Stderr
	}
	logger := config.NewLogger(settings.Server.LogLevel, logOut)

	if envErr == nil {
		logger.Info("loaded environment variables from .env file")
	} else if !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("error loading .env file", "error", envErr)
	}

	logger.Info("starting", "app", AppName, "version", Version, "mode", mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, settings, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	go reloadOnSignal(ctx, a)

	switch {
	case isStdioMode(mode):
		runStdioMCPWithInternalServer(a)

	case mode == "server" || mode == "http":
		runHTTPServer(ctx, a)

	default:
		logger.Error("unknown mode, use 'server' (default) or 'stdio-mcp'", "mode", mode)
		os.Exit(2)
	}
}

func isStdioMode(mode string) bool {
	return mode == "stdio-mcp" || mode == "mcp-stdio" || mode == "mcp"
}

// applyFlagOverrides copies explicitly set flags over the loaded settings
func applyFlagOverrides(settings *config.Settings) {
	if *port > 0 {
		settings.Server.Port = *port
	}
	if *host != "" {
		settings.Server.Host = *host
	}
	if *configDir != "" {
		settings.Server.ConfigDir = *configDir
	}
	if *defaultCfg != "" {
		settings.Server.DefaultConfig = *defaultCfg
	}
	if *backend != "" {
		settings.Leaderboard.Backend = *backend
	}
	if *debug {
		settings.Server.LogLevel = "debug"
	}
	if *offline {
		settings.Assets.Offline = true
	}
}

// app holds the wired services shared by both modes
type app struct {
	settings *config.Settings
	logger   *slog.Logger
	service  service.GameService
	configs  *config.Manager
	sessions *session.Manager
	hub      *websocket.Hub
	limiter  *api.RateLimiter
	registry *prometheus.Registry
	closers  []io.Closer
}

// newApp wires the leaderboard, face provider, metrics, session and config
// managers and the game service. It also starts the hub and a background
// routine that prunes idle sessions until ctx is done.
func newApp(ctx context.Context, settings *config.Settings, logger *slog.Logger) (*app, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	configManager, err := config.NewManager(settings.Server.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if name := settings.Server.DefaultConfig; name != "" {
		if err := configManager.SetDefault(name); err != nil {
			return nil, fmt.Errorf("failed to select default preset %q: %w", name, err)
		}
	}

	a := &app{
		settings: settings,
		logger:   logger,
		configs:  configManager,
		sessions: session.NewManager(),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(a.registry)

	store, closer, err := openLeaderboardStore(ctx, settings.Leaderboard, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	board := leaderboard.New(ctx, store, leaderboard.WithLogger(logger))

	a.hub = websocket.NewHub(logger)
	go a.hub.Run()

	a.service = service.NewGameService(a.sessions, configManager,
		service.WithLeaderboard(board),
		service.WithFaceProvider(newFaceProvider(settings.Assets, collector, logger)),
		service.WithBroadcaster(a.hub),
		service.WithMetrics(collector),
		service.WithLogger(logger),
	)

	limits := api.DefaultRateLimitConfig()
	limits.FlipsPerSecond = rate.Limit(settings.RateLimit.FlipsPerSecond)
	limits.Burst = settings.RateLimit.Burst
	a.limiter = api.NewRateLimiter(limits, collector, logger)

	go sessionCleanupRoutine(ctx, a.sessions, time.Duration(settings.Sessions.MaxIdleHours)*time.Hour, logger)

	return a, nil
}

// reloadPresets drops cached presets so edits on disk take effect, then
// reapplies the configured default
func (a *app) reloadPresets() error {
	if err := a.configs.RefreshCache(); err != nil {
		return err
	}
	if name := a.settings.Server.DefaultConfig; name != "" {
		return a.configs.SetDefault(name)
	}
	return nil
}

// reloadOnSignal reloads presets on SIGHUP until ctx is done
func reloadOnSignal(ctx context.Context, a *app) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.reloadPresets(); err != nil {
				a.logger.Error("failed to reload presets", "error", err)
				continue
			}
			a.logger.Info("presets reloaded", "dir", a.settings.Server.ConfigDir)
		}
	}
}

// openLeaderboardStore picks the blob store named by the settings. The
// returned closer is nil when the store holds no resources.
func openLeaderboardStore(ctx context.Context, s config.LeaderboardSettings, logger *slog.Logger) (leaderboard.BlobStore, io.Closer, error) {
	switch s.Backend {
	case "memory":
		return leaderboard.NewMemoryBlobStore(), nil, nil
	case "file":
		store, err := leaderboard.NewFileBlobStore(s.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open leaderboard dir: %w", err)
		}
		return store, nil, nil
	case "postgres":
		store, err := leaderboard.OpenPostgresBlobStore(ctx, s.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open leaderboard database: %w", err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown leaderboard backend: %q", s.Backend)
	}
}

func newFaceProvider(s config.AssetSettings, recorder assets.FailureRecorder, logger *slog.Logger) assets.Provider {
	if s.Offline {
		logger.Info("using offline card faces")
		return assets.NewOfflineProvider(nil)
	}
	return assets.NewPokeAPIProvider(
		assets.NewSafeHTTPClient(time.Duration(s.TimeoutSeconds)*time.Second),
		logger,
		assets.WithBaseURL(s.BaseURL),
		assets.WithConcurrency(s.Concurrency),
		assets.WithFailureRecorder(recorder),
	)
}

// apiHandler returns the REST API with metrics and rate limiting
func (a *app) apiHandler() *api.Server {
	return api.NewServer(a.service, a.hub,
		api.WithRateLimiter(a.limiter),
		api.WithMetricsGatherer(a.registry),
		api.WithLogger(a.logger),
	)
}

// handler mounts the API at the root and an MCP endpoint proxying to baseURL
func (a *app) handler(baseURL string) http.Handler {
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", a.apiHandler())
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// Close releases the rate limiter and any open leaderboard store
func (a *app) Close() {
	a.limiter.Stop()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("failed to close resource", "error", err)
		}
	}
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, metrics and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, a *app) {
	logger := a.logger
	addr := a.settings.Server.Addr()

	baseHost := a.settings.Server.Host
	if baseHost == "" {
		baseHost = "localhost"
	}
	baseURL := fmt.Sprintf("http://%s:%d", baseHost, a.settings.Server.Port)
	mainRouter := a.handler(baseURL)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			"addr", addr,
			"api", baseURL+"/api",
			"websocket", "ws://"+baseURL[len("http://"):]+"/ws?session=<session_id>",
			"metrics", baseURL+"/metrics",
			"mcp", baseURL+"/mcp",
		)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Check if ngrok should be enabled (from flag or environment)
	ngrokShouldRun := *ngrokEnabled
	if envEnabled := os.Getenv("NGROK_ENABLED"); envEnabled == "true" || envEnabled == "1" {
		ngrokShouldRun = true
	}

	if ngrokShouldRun {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, mainRouter, logger)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("server stopped")
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx is done
func runNgrokTunnel(ctx context.Context, handler http.Handler, logger *slog.Logger) {
	// Get auth token from flag or environment (support both naming conventions)
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
		if authToken == "" {
			authToken = os.Getenv("NGROK_AUTH_TOKEN")
		}
	}
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logger.Info("using custom ngrok domain", "domain", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", "error", err)
		}
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", ngrokURL,
		"api", ngrokURL+"/api",
		"mcp", ngrokURL+"/mcp",
	)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within maxIdle, until ctx is done.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, maxIdle time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxIdle); removed > 0 {
				logger.Info("cleaned up expired sessions", "count", removed)
			}
		}
	}
}

// externalAPIAvailable reports whether a game server answers at baseURL
func externalAPIAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at the configured address; if unavailable,
// it starts an internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(a *app) {
	logger := a.logger

	externalURL := fmt.Sprintf("http://localhost:%d", a.settings.Server.Port)
	baseURL := externalURL
	logger.Info("checking for external API server", "url", externalURL)

	if externalAPIAvailable(externalURL) {
		logger.Info("external API server found, using it for MCP", "url", externalURL)
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			logger.Error("failed to get available port", "error", err)
			os.Exit(1)
		}

		baseURL = "http://" + listener.Addr().String()
		logger.Info("starting internal HTTP server for MCP stdio", "url", baseURL)

		httpServer := &http.Server{Handler: a.apiHandler()}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "error", err)
			}
		}()
		defer httpServer.Close()
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		logger.Error("MCP stdio server error", "error", err)
	}
}
