// Package websocket pushes live game state to browser and bot clients.
//
// The package uses a hub-and-spoke model where a central Hub tracks the
// connections watching each session. Every engine transition, including the
// delayed pair resolution and mismatch revert that no request triggers, is
// broadcast as a state_update message carrying the redacted GameState and
// the events that produced it. A new connection first receives a snapshot
// message with the current state.
//
// Message Protocol:
//
//	{"session_id": "ab12", "event": "state_update", "game_state": {...}, "events": [...]}
//
// Clients pick their session with the session query parameter (/ws?session=ab12).
// Incoming messages are ignored.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run()
//
//	svc := service.NewGameService(sessions, configs, service.WithBroadcaster(hub))
//
// Slow clients whose send buffer fills up are dropped instead of blocking
// the game.
package websocket
