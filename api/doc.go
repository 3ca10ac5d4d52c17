// Package api provides HTTP REST API handlers for the Pokémon memory game.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session {config_id?, grid_size?, player_count?, player_names?}
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current (redacted) game state
//   - POST /api/sessions/{id}/flip - Flip a card {slot}; 429 when rate limited
//   - POST /api/sessions/{id}/reset - Deal a new board
//   - PUT /api/sessions/{id}/players - Rename players {names} and restart
//
// Leaderboard:
//   - GET /api/leaderboard - Best games across every tier (?grid_size=N for one tier)
//   - DELETE /api/leaderboard - Clear every entry
//
// Configuration:
//   - GET /api/configs - List difficulty presets
//   - GET /api/configs/{name} - Get one preset
//
// Other:
//   - GET /api/health - Liveness and session count
//   - GET /metrics - Prometheus metrics, when a gatherer is configured
//   - GET /ws?session={id} - WebSocket feed of state updates
//
// A flip that the game ignores (face-up card, pending pair, finished game)
// is not an HTTP error: the response is 200 with accepted=false and a message
// saying why.
//
// Error Handling:
//
// Errors are returned as JSON:
//
//	{"error": "session not found: session not found"}
//
// Unknown sessions and presets map to 404, invalid requests and boards to
// 400, and exhausted flip budgets to 429 with a Retry-After header.
package api
