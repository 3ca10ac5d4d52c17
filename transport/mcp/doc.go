// Package mcp provides a Model Context Protocol front end for the Pokémon
// memory game.
//
// The Client is a thin proxy: every tool call is translated into a REST
// request against a running game server and the JSON response is rendered
// as text an AI agent can read.
//
// MCP Tools:
//   - create_session: Start a game from a preset or a custom grid
//   - list_sessions / get_session: Inspect active sessions
//   - game_state: Board, scores and whose turn it is
//   - flip_card: Flip the card in one slot
//   - reset_game: Deal a new board
//   - set_player_names: Rename players and restart
//   - leaderboard: Best finished games, optionally for one grid size
//   - list_configs: Difficulty presets
//   - game_instructions: Rules, scoring and tips
//
// Board Rendering:
//
// Slots are printed row by row with their index. Face-down cards show as
// "??", revealed cards as "*Name", power-up peeks as "~Name" and matched
// cards as "✓Name". Hidden faces never leave the server, so the text view
// carries no more than a human player would see.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
