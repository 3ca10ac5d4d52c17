package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/pokemon-memory-game/game/engine"
	"github.com/wricardo/pokemon-memory-game/game/leaderboard"
	"github.com/wricardo/pokemon-memory-game/game/service"
)

// cellWidth is the column width of one card in the text board
const cellWidth = 16

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Pokemon Memory Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Pokemon Memory Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Find every matching pair of Pokemon cards on the board. Flip two cards per
move; a match keeps them face up, a mismatch turns them back over.

AVAILABLE TOOLS:
- create_session: Start a game (preset or custom grid, 1-2 players)
- game_state: Show the board and scores
- flip_card: Flip the card in a slot - requires intent explanation
- reset_game: Deal a new board
- set_player_names: Rename players and restart
- leaderboard: Best games per grid size
- get_session / list_sessions / list_configs
- game_instructions: Full rules and scoring

NOTE: After the second flip the pair resolves about a second later. Call
game_state before flipping again.`),
	)

	c.registerTools()
}

func sessionIDSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session from a preset or a custom grid",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Preset to use (easy, medium, hard, duel). Optional",
				},
				"grid_size": map[string]interface{}{
					"type":        "integer",
					"description": "Board side length, even, 2-12. Overrides the preset",
				},
				"player_count": map[string]interface{}{
					"type":        "integer",
					"enum":        []int{1, 2},
					"description": "Number of players taking turns",
				},
				"player_names": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Display names, one per player",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDSchema(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Show the board, scores and whose turn it is",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDSchema(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "flip_card",
		Description: "Flip the face-down card in a slot",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDSchema(),
				"slot": map[string]interface{}{
					"type":        "integer",
					"description": "Slot index, row by row from 0",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of why this card (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "slot"},
		},
	}, c.handleFlip)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Deal a new board; scores and moves start over",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDSchema(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_player_names",
		Description: "Rename the players and start a new game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDSchema(),
				"names": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Display names; blank names become Player N",
				},
			},
			Required: []string{"session_id", "names"},
		},
	}, c.handleSetPlayerNames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Show the best finished games",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"grid_size": map[string]interface{}{
					"type":        "integer",
					"description": "Only this grid size (optional)",
				},
			},
		},
	}, c.handleLeaderboard)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available difficulty presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules, scoring and tips",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// arguments returns the tool arguments as a map; missing arguments give an
// empty map
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

// intArg reads a JSON number argument
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func stringsArg(args map[string]interface{}, key string) []string {
	raw, _ := args[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]interface{}{}
	if configID, _ := args["config_id"].(string); configID != "" {
		body["config_id"] = configID
	}
	if gridSize, ok := intArg(args, "grid_size"); ok {
		body["grid_size"] = gridSize
	}
	if players, ok := intArg(args, "player_count"); ok {
		body["player_count"] = players
	}
	if _, ok := args["player_names"]; ok {
		body["player_names"] = stringsArg(args, "player_names")
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s", session.ID, session.ConfigName, formatGameState(session.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Sessions) == 0 {
		return mcp.NewToolResultText("No active sessions. Use create_session to start a game."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active sessions (%d):\n", response.Count)
	for _, s := range response.Sessions {
		b.WriteString("- ")
		b.WriteString(formatSessionInfo(s))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session) + "\n\n" + formatGameState(session.GameState)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleFlip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	slot, ok := intArg(args, "slot")
	if !ok {
		return mcp.NewToolResultError("slot is required and must be an integer"), nil
	}

	// intent is only for the agent's own reasoning and is not forwarded
	var result service.FlipResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/flip"), map[string]int{"slot": slot}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFlipResult(slot, &result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message + "\n\n" + formatGameState(response.State)), nil
}

func (c *Client) handleSetPlayerNames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	body := map[string][]string{"names": stringsArg(args, "names")}
	if err := c.apiCall(ctx, "PUT", sessionPath(sessionID, "/players"), body, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message + "\n\n" + formatGameState(response.State)), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/leaderboard"
	gridSize, filtered := intArg(arguments(request), "grid_size")
	if filtered {
		path += "?grid_size=" + strconv.Itoa(gridSize)
	}

	var response struct {
		Entries []leaderboard.Entry `json:"entries"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	title := "Leaderboard (all tiers)"
	if filtered {
		title = fmt.Sprintf("Leaderboard %dx%d (%s)", gridSize, gridSize, engine.DifficultyTier(gridSize))
	}
	return mcp.NewToolResultText(formatLeaderboard(title, response.Entries)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []*service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available presets:\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "- %s: %s, %dx%d, %d player(s)", cfg.ConfigID, cfg.Difficulty, cfg.GridSize, cfg.GridSize, cfg.PlayerCount)
		if cfg.Description != "" {
			fmt.Fprintf(&b, " - %s", cfg.Description)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := fmt.Sprintf(`# Pokemon Memory Game

## Objective
Every Pokemon appears on exactly two cards. Find all pairs.

## Turn
1. flip_card on a face-down slot. The card shows its Pokemon.
2. flip_card on a second slot. This counts as one move.
3. About a second later the pair resolves:
   - Match: both cards stay face up and the player scores 1 point.
   - Mismatch: the cards turn back over. In a two-player game the turn passes.
While a pair is resolving every flip is ignored.

## Board
Slots are numbered row by row from 0. In game_state:
  ??       face down
  *Name    face up, waiting to resolve
  ~Name    briefly visible after a power-up
  ✓Name    matched
A hidden card may be a power-up. Flipping it shows every face-down card for
a moment and does not count as a move.

## Scoring
- 1 point per matched pair
- Perfect game bonus: +%d when the board is cleared in no more moves than pairs
- Speed bonus: +%d when the board is cleared in under %d seconds
- A streak of %d or more consecutive matches is announced; %d or more is legendary

## Leaderboard
Single-winner games are ranked per grid size by score, then time, then moves.

## Tips
- Remember every face you see, including mismatches and power-up peeks.
- When you know both slots of a face, flip them back to back.
- Flip an unknown card first; if its partner is known, take the match.
`, engine.PerfectGameBonus, engine.SpeedBonus, engine.SpeedBonusSeconds, engine.StreakThreshold, engine.LegendaryStreak)

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	summary := fmt.Sprintf("Session %s • Config: %s", session.ID, session.ConfigName)
	if state := session.GameState; state != nil {
		summary += fmt.Sprintf(" • %dx%d • %s • pairs %d/%d", state.GridSize, state.GridSize, state.Phase, state.MatchedPairs, state.TotalPairs)
	}
	return summary
}

// cardLabel renders one card as seen by the player
func cardLabel(c engine.Card) string {
	name := c.FaceID
	if c.Face != nil && c.Face.DisplayName != "" {
		name = c.Face.DisplayName
	}
	switch {
	case c.IsResolved:
		return "✓" + name
	case c.IsRevealed:
		return "*" + name
	case c.IsPeeking:
		return "~" + name
	default:
		return "??"
	}
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s • Grid: %dx%d (%s) • Moves: %d • Time: %s\n",
		state.Phase, state.GridSize, state.GridSize, state.DifficultyTier, state.MoveCount, state.FormattedTime)
	fmt.Fprintf(&b, "Pairs: %d/%d • Combo: %d • Streak: %d\n",
		state.MatchedPairs, state.TotalPairs, state.ComboCount, state.StreakCount)

	players := make([]string, 0, len(state.Players))
	for i, p := range state.Players {
		marker := "  "
		if i == state.ActivePlayerIndex && len(state.Players) > 1 {
			marker = "▶ "
		}
		players = append(players, fmt.Sprintf("%s%s: %d", marker, p.DisplayName, p.Score))
	}
	b.WriteString("Players: " + strings.Join(players, " | ") + "\n")

	if len(state.PendingReveal) > 0 {
		pending := make([]string, len(state.PendingReveal))
		for i, slot := range state.PendingReveal {
			pending[i] = strconv.Itoa(slot)
		}
		b.WriteString("Pending pair: " + strings.Join(pending, ", ") + "\n")
	}
	if state.Message != "" {
		b.WriteString("Message: " + state.Message + "\n")
	}

	if state.GridSize > 0 {
		b.WriteString("\nBoard:\n")
		for i, c := range state.Cards {
			cell := fmt.Sprintf("%d:%s", i, cardLabel(c))
			if len([]rune(cell)) < cellWidth {
				cell += strings.Repeat(" ", cellWidth-len([]rune(cell)))
			}
			b.WriteString(cell)
			if (i+1)%state.GridSize == 0 {
				b.WriteString("\n")
			}
		}
	}

	if state.IsWon && state.Winner != nil {
		b.WriteString("\n🎉 Game won")
		if state.Winner.Tie {
			b.WriteString(" - it's a tie")
		} else {
			fmt.Fprintf(&b, " by %s with %d points", state.Winner.Name, state.Winner.Score)
		}
		if state.PerfectGameBonus {
			b.WriteString(" • perfect game")
		}
		if state.SpeedBonus {
			b.WriteString(" • speed bonus")
		}
		b.WriteString("\n")
	}

	return b.String()
}

func formatFlipResult(slot int, result *service.FlipResult) string {
	var b strings.Builder
	if result.Accepted {
		fmt.Fprintf(&b, "Flipped slot %d\n", slot)
	} else {
		fmt.Fprintf(&b, "Flip ignored: %s\n", result.Message)
	}

	if len(result.Events) > 0 {
		b.WriteString("Events:\n")
		for _, event := range result.Events {
			fmt.Fprintf(&b, "- %s: %s\n", event.Type, event.Message)
		}
	}
	if result.GameState != nil && result.GameState.Phase == engine.PhaseResolving {
		b.WriteString("The pair resolves shortly; call game_state to see the outcome.\n")
	}

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatLeaderboard(title string, entries []leaderboard.Entry) string {
	var b strings.Builder
	b.WriteString(title + "\n")
	if len(entries) == 0 {
		b.WriteString("No entries yet.\n")
		return b.String()
	}
	for i, e := range entries {
		fmt.Fprintf(&b, "%2d. %-20s %3d pts  %s  %d moves  %s\n",
			i+1, e.PlayerName, e.Score, engine.FormatTime(e.ElapsedSeconds), e.MoveCount, e.DifficultyTier)
	}
	return b.String()
}
