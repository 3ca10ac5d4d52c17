// Package service provides the business logic layer for the Pokémon memory game.
//
// The service package implements:
//   - Multi-session game management
//   - Preset and custom board selection
//   - Flip processing with readable rejection reasons
//   - Leaderboard recording and queries
//   - Display name sanitizing
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages difficulty presets.
// Broadcaster receives the client view after every engine transition.
//
// Architecture:
//
// The service layer sits between the transports (HTTP/WebSocket/MCP) and the
// game engine. Each session owns its own engine; delayed transitions such as
// pair resolution and mismatch reverts reach subscribers through the
// Broadcaster. Every state that leaves the service is redacted so face-down
// cards never reveal their face.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr,
//		service.WithFaceProvider(provider),
//		service.WithBroadcaster(hub),
//	)
//
//	info, err := gameService.CreateSession(ctx, service.CreateOptions{ConfigID: "easy"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Flip(ctx, info.ID, 3)
//
// Sessions are identified by 4-character IDs and live in memory only.
package service
